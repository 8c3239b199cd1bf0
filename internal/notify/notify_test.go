package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/m3rciful/starshop/internal/shop"
)

type fakeSender struct {
	mu   sync.Mutex
	fail map[int64]bool
	sent map[int64][]string
}

func (f *fakeSender) SendText(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[chatID] {
		return errors.New("bot was blocked by the user")
	}
	if f.sent == nil {
		f.sent = map[int64][]string{}
	}
	f.sent[chatID] = append(f.sent[chatID], text)
	return nil
}

func TestNotifyAdminsSwallowsFailures(t *testing.T) {
	s := &fakeSender{fail: map[int64]bool{2: true}}
	n := New(s, []int64{1, 2, 3})

	rep := n.NotifyAdmins(context.Background(), "новый заказ")

	assert.Equal(t, Report{Delivered: 2, Failed: 1}, rep)
	assert.Equal(t, []string{"новый заказ"}, s.sent[1])
	assert.Equal(t, []string{"новый заказ"}, s.sent[3])
	assert.NotContains(t, s.sent, int64(2))
}

func TestBroadcastCountsEveryRecipient(t *testing.T) {
	s := &fakeSender{fail: map[int64]bool{20: true, 30: true}}
	n := New(s, nil)

	rep := n.Broadcast(context.Background(), []shop.UserID{10, 20, 30, 40}, "акция")

	assert.Equal(t, 2, rep.Delivered)
	assert.Equal(t, 2, rep.Failed)
}

func TestBroadcastStopsOnCancelledContext(t *testing.T) {
	s := &fakeSender{}
	n := New(s, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep := n.Broadcast(ctx, []shop.UserID{1, 2, 3}, "x")

	assert.Equal(t, Report{Failed: 3}, rep)
	assert.Empty(t, s.sent)
}

func TestNilNotifierIsNoop(t *testing.T) {
	var n *Notifier
	assert.Equal(t, Report{}, n.NotifyAdmins(context.Background(), "x"))
}

func TestSenderFunc(t *testing.T) {
	var got int64
	n := New(SenderFunc(func(_ context.Context, chatID int64, _ string) error {
		got = chatID
		return nil
	}), []int64{99})
	n.NotifyAdmins(context.Background(), "ping")
	assert.Equal(t, int64(99), got)
}
