package middleware

import (
	"sync"

	tele "gopkg.in/telebot.v4"
)

const countersKey = "reply_counters"

// replyCounters tallies what a handler sent for the handler summary line.
type replyCounters struct {
	mu       sync.Mutex
	messages int
	keyboard bool
}

func (r *replyCounters) add(opts []any) {
	kb := hasKeyboard(opts)
	r.mu.Lock()
	r.messages++
	r.keyboard = r.keyboard || kb
	r.mu.Unlock()
}

func hasKeyboard(opts []any) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

// metricsContext counts successful outgoing messages of the wrapped context.
type metricsContext struct {
	tele.Context
	counters *replyCounters
}

func (m metricsContext) count(err error, opts []any) error {
	if err == nil {
		m.counters.add(opts)
	}
	return err
}

func (m metricsContext) Send(what any, opts ...any) error {
	return m.count(m.Context.Send(what, opts...), opts)
}

func (m metricsContext) Reply(what any, opts ...any) error {
	return m.count(m.Context.Reply(what, opts...), opts)
}

func (m metricsContext) Edit(what any, opts ...any) error {
	return m.count(m.Context.Edit(what, opts...), opts)
}

func (m metricsContext) EditOrSend(what any, opts ...any) error {
	return m.count(m.Context.EditOrSend(what, opts...), opts)
}

func (m metricsContext) EditOrReply(what any, opts ...any) error {
	return m.count(m.Context.EditOrReply(what, opts...), opts)
}

// MessageMetricsMiddleware counts the messages a handler sends and whether
// any of them carried a keyboard.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		counters := &replyCounters{}
		c.Set(countersKey, counters)
		return next(metricsContext{Context: c, counters: counters})
	}
}

// GetCounters returns the message count and keyboard flag recorded for c.
func GetCounters(c tele.Context) (int, bool) {
	counters, ok := c.Get(countersKey).(*replyCounters)
	if !ok {
		return 0, false
	}
	counters.mu.Lock()
	defer counters.mu.Unlock()
	return counters.messages, counters.keyboard
}
