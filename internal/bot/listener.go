package bot

import (
	"context"
	"log/slog"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/starshop/core/logger"
	tg "github.com/m3rciful/starshop/core/telegram"
	tghelpers "github.com/m3rciful/starshop/core/telegram/helpers"
	"github.com/m3rciful/starshop/internal/checkout"
	"github.com/m3rciful/starshop/internal/events"
	"github.com/m3rciful/starshop/internal/notify"
	"github.com/m3rciful/starshop/internal/shop"
)

// OrderListener tells operators and the event bus about committed orders.
type OrderListener struct {
	notifier  *notify.Notifier
	publisher events.Publisher
}

var _ checkout.OrderListener = (*OrderListener)(nil)

func NewOrderListener(n *notify.Notifier, p events.Publisher) *OrderListener {
	return &OrderListener{notifier: n, publisher: p}
}

func (l *OrderListener) OrderPlaced(ctx context.Context, order shop.Order) {
	l.notifier.NotifyAdmins(ctx, orderNoticeText(order))
	events.Emit(ctx, l.publisher, events.OrderPlaced(order))
}

// UserRegistry upserts every user the first time the process sees them.
type UserRegistry struct {
	store shop.Store
	seen  sync.Map
}

func NewUserRegistry(store shop.Store) *UserRegistry {
	return &UserRegistry{store: store}
}

// Middleware registers the sender and always continues; failures are
// retried on the user's next update.
func (r *UserRegistry) Middleware() tg.Middleware {
	return tg.Middleware{
		Name: "register_user",
		Use: func(next tele.HandlerFunc) tele.HandlerFunc {
			return func(c tele.Context) error {
				if u := c.Sender(); u != nil && u.ID != 0 && !u.IsBot {
					r.ensure(c, shop.UserID(u.ID))
				}
				return next(c)
			}
		},
	}
}

func (r *UserRegistry) ensure(c tele.Context, uid shop.UserID) {
	if _, ok := r.seen.Load(uid); ok {
		return
	}
	ctx := tghelpers.BuildContext(c)
	if err := r.store.EnsureUser(ctx, uid); err != nil {
		logger.Warn(ctx, component, "user.register",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return
	}
	r.seen.Store(uid, struct{}{})
}
