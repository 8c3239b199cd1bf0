// Package notify fans plain-text notices out to operators and users.
// Delivery is best-effort: failures are logged and counted, never retried.
package notify

import (
	"context"
	"log/slog"

	"github.com/m3rciful/starshop/core/logger"
	"github.com/m3rciful/starshop/internal/shop"
)

const component = "notify"

// Sender delivers a text message to a chat.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, chatID int64, text string) error

func (f SenderFunc) SendText(ctx context.Context, chatID int64, text string) error {
	return f(ctx, chatID, text)
}

// Report counts delivery results of a fan-out.
type Report struct {
	Delivered int
	Failed    int
}

// Notifier sends notices to a fixed operator set.
type Notifier struct {
	sender Sender
	admins []int64
}

func New(sender Sender, admins []int64) *Notifier {
	return &Notifier{sender: sender, admins: append([]int64(nil), admins...)}
}

// NotifyAdmins sends text to every operator.
func (n *Notifier) NotifyAdmins(ctx context.Context, text string) Report {
	if n == nil {
		return Report{}
	}
	return n.fanout(ctx, "admins.notify", n.admins, text)
}

// Broadcast sends text to every recipient, skipping the ones that fail.
func (n *Notifier) Broadcast(ctx context.Context, recipients []shop.UserID, text string) Report {
	ids := make([]int64, 0, len(recipients))
	for _, r := range recipients {
		ids = append(ids, int64(r))
	}
	return n.fanout(ctx, "broadcast", ids, text)
}

func (n *Notifier) fanout(ctx context.Context, event string, ids []int64, text string) Report {
	var rep Report
	if n == nil || n.sender == nil {
		return rep
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			rep.Failed += len(ids) - rep.Delivered - rep.Failed
			break
		}
		if err := n.sender.SendText(ctx, id, text); err != nil {
			rep.Failed++
			logger.Warn(ctx, component, event+".fail",
				slog.String("status", "fail"),
				slog.Int64("chat_id", id),
				slog.String("err", err.Error()),
			)
			continue
		}
		rep.Delivered++
	}
	logger.Info(ctx, component, event,
		slog.String("status", "ok"),
		slog.Int("count", len(ids)),
		slog.Int("delivered", rep.Delivered),
		slog.Int("failed", rep.Failed),
	)
	return rep
}
