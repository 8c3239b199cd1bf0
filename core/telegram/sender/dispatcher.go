// Package sender runs outbound Bot API calls on a worker pool with retries.
// Every chat is pinned to one worker, so replies to a user keep their order.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/starshop/core/logger"
	"github.com/m3rciful/starshop/core/telegram/netutil"
)

const component = "tg.sender"

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the chat's queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")

	errNilRun = errors.New("telegram sender: nil run function")
)

// Options controls the behaviour of the outbound dispatcher.
// Zero values select defaults; MaxRetries of 0 means a single attempt.
type Options struct {
	// QueueSize is the total capacity, split evenly across workers.
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

// Job is a single outbound call. Run must be safe to repeat when retries are
// enabled. A zero ChatID is taken from the update metadata in the context.
type Job struct {
	ChatID   int64
	Action   string
	Endpoint string
	Run      func() error
}

type queued struct {
	ctx context.Context
	job Job
}

// Dispatcher executes jobs asynchronously, one ordered lane per worker.
type Dispatcher struct {
	opts  Options
	lanes []chan queued

	// mu guards closed so that Enqueue never sends on a closed lane.
	mu     sync.RWMutex
	closed bool
	once   sync.Once

	wg   sync.WaitGroup
	sent atomic.Uint64
	errs atomic.Uint64
}

// NewDispatcher starts the workers.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{
		opts:  opts,
		lanes: make([]chan queued, opts.Workers),
	}
	depth := max(opts.QueueSize/opts.Workers, 1)
	d.wg.Add(len(d.lanes))
	for i := range d.lanes {
		d.lanes[i] = make(chan queued, depth)
		go d.worker(d.lanes[i])
	}
	return d
}

func (d *Dispatcher) lane(chatID int64) chan queued {
	return d.lanes[uint64(chatID)%uint64(len(d.lanes))]
}

// Enqueue schedules j on its chat's lane without blocking.
func (d *Dispatcher) Enqueue(ctx context.Context, j Job) error {
	if j.Run == nil {
		return errNilRun
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if j.ChatID == 0 {
		j.ChatID = logger.ChatIDFrom(ctx)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.lane(j.ChatID) <- queued{ctx: ctx, job: j}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Sent returns the number of jobs that eventually succeeded.
func (d *Dispatcher) Sent() uint64 {
	return d.sent.Load()
}

// ErrorCount returns the number of failed jobs.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close stops accepting jobs and waits for the queued ones to finish.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		for _, l := range d.lanes {
			close(l)
		}
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) worker(lane <-chan queued) {
	defer d.wg.Done()
	for q := range lane {
		start := time.Now()
		attempts, err := d.attempt(q)
		attrs := []slog.Attr{
			slog.String("action", q.job.Action),
			slog.String("endpoint", q.job.Endpoint),
			slog.Int("attempts", attempts),
			slog.Duration("elapsed", logger.Took(start)),
		}
		if err != nil {
			d.errs.Add(1)
			logger.Error(q.ctx, component, "send.fail", append(attrs,
				slog.String("status", "fail"),
				slog.String("err", netutil.Redact(err)),
				slog.String("err_code", netutil.Classify(err)),
			)...)
			continue
		}
		d.sent.Add(1)
		if attempts > 1 {
			logger.Info(q.ctx, component, "send.retry.ok", attrs...)
		}
	}
}

// attempt runs the job until it succeeds, fails permanently or runs out of
// retries or time.
func (d *Dispatcher) attempt(q queued) (int, error) {
	ctx, cancel := context.WithTimeout(q.ctx, d.opts.MaxDuration)
	defer cancel()

	limit := d.opts.MaxRetries + 1
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return n - 1, err
		}
		err := q.job.Run()
		if err == nil {
			return n, nil
		}
		if n >= limit || !netutil.ShouldRetry(err) {
			return n, err
		}

		delay := netutil.RetryDelay(err, n, d.opts.RetryBackoff)
		logger.Debug(q.ctx, component, "send.retry.wait",
			slog.String("action", q.job.Action),
			slog.Int("attempt", n),
			slog.Duration("delay", delay),
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return n, ctx.Err()
		case <-timer.C:
		}
	}
}
