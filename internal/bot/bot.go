// Package bot is the Telegram presentation layer of the storefront: it maps
// commands and inline buttons onto the store, the catalog and the checkout
// machine, and renders the replies.
package bot

import (
	"errors"
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/starshop/core/logger"
	tg "github.com/m3rciful/starshop/core/telegram"
	"github.com/m3rciful/starshop/core/telegram/commands"
	tghelpers "github.com/m3rciful/starshop/core/telegram/helpers"
	"github.com/m3rciful/starshop/core/telegram/middleware"
	"github.com/m3rciful/starshop/core/telegram/state"
	"github.com/m3rciful/starshop/internal/catalog"
	"github.com/m3rciful/starshop/internal/checkout"
	"github.com/m3rciful/starshop/internal/events"
	"github.com/m3rciful/starshop/internal/notify"
	"github.com/m3rciful/starshop/internal/shop"
)

const component = "bot"

// Options carries the collaborators of the handlers.
type Options struct {
	Store    shop.Store
	Catalog  *catalog.Catalog
	Checkout *checkout.Machine
	Notifier *notify.Notifier
	Events   events.Publisher
	// States drives the single-step conversations (broadcast, problem report).
	States  state.Manager
	IsAdmin func(userID int64) bool
	Title   string
	SiteURL string
	Now     func() time.Time
}

// Handlers implements every command and callback of the storefront.
type Handlers struct {
	store    shop.Store
	catalog  *catalog.Catalog
	checkout *checkout.Machine
	notifier *notify.Notifier
	events   events.Publisher
	states   state.Manager
	isAdmin  func(int64) bool
	title    string
	siteURL  string
	now      func() time.Time
}

func New(opts Options) *Handlers {
	h := &Handlers{
		store:    opts.Store,
		catalog:  opts.Catalog,
		checkout: opts.Checkout,
		notifier: opts.Notifier,
		events:   opts.Events,
		states:   opts.States,
		isAdmin:  opts.IsAdmin,
		title:    opts.Title,
		siteURL:  opts.SiteURL,
		now:      opts.Now,
	}
	if h.states == nil {
		h.states = state.NewMemoryManager()
	}
	if h.events == nil {
		h.events = events.Nop{}
	}
	if h.isAdmin == nil {
		h.isAdmin = func(int64) bool { return false }
	}
	if h.now == nil {
		h.now = time.Now
	}
	h.states.Handle(stateBroadcast, h.onBroadcastText)
	h.states.Handle(stateReport, h.onReportText)
	return h
}

// Register binds commands, callbacks and fallbacks to reg.
func (h *Handlers) Register(reg *tg.Registry) error {
	cmds := map[string]commands.Command{
		"/start":   {Handler: h.start, Description: "Главное меню"},
		"/help":    {Handler: h.help, Description: "Список команд", Aliases: []string{"помощь"}},
		"/cart":    {Handler: h.cart, Description: "Корзина", Aliases: []string{"корзина"}},
		"/stars":   {Handler: h.stars, Description: "Баланс звёзд"},
		"/history": {Handler: h.history, Description: "История заказов"},
		"/cancel":  {Handler: h.cancel, Description: "Отменить оформление заказа", Aliases: []string{"отмена"}},

		"/addstars":  {Handler: h.addStars, Description: "Начислить звёзды", AdminOnly: true},
		"/export":    {Handler: h.exportOrders, Description: "Выгрузить заказы", AdminOnly: true},
		"/broadcast": {Handler: h.broadcastCommand, Description: "Рассылка", AdminOnly: true},
		"/users":     {Handler: h.users, Description: "Пользователи", AdminOnly: true},
		"/stats":     {Handler: h.adminStats, Description: "Статистика", AdminOnly: true},
	}
	for name, cmd := range cmds {
		if err := reg.RegisterCommand(name, cmd); err != nil {
			return err
		}
	}

	adminOnly := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		IsAdmin:  h.isAdmin,
		OnReject: h.AccessDenied,
	})
	buttons := map[string]tele.HandlerFunc{
		cbMain:          h.mainMenu,
		cbProducts:      h.productList(catalog.KindOneTime, textProducts),
		cbSubscriptions: h.productList(catalog.KindSubscription, textSubscriptions),
		cbView:          h.viewProduct,
		cbAdd:           h.addToCart,
		cbRemove:        h.removeFromCart,
		cbCart:          h.cart,
		cbClearCart:     h.clearCart,
		cbCheckout:      h.beginCheckout,
		cbConfirm:       h.confirm,
		cbCancel:        h.cancel,
		cbMyStats:       h.myStats,
		cbReport:        h.beginReport,

		cbAdminPanel:     adminOnly(h.adminPanel),
		cbAdminUsers:     adminOnly(h.users),
		cbAdminOrders:    adminOnly(h.exportOrders),
		cbAdminBroadcast: adminOnly(h.beginBroadcast),
		cbAdminStats:     adminOnly(h.adminStats),
	}
	for key, fn := range buttons {
		if err := reg.RegisterCallback(key, fn); err != nil {
			return err
		}
	}
	reg.SetCallbackNotFound(func(c tele.Context) error {
		return tghelpers.SendText(c, textUnknownItem)
	})
	reg.SetTextFallback(h.unknownText)
	return nil
}

// AccessDenied answers operator-only actions attempted by other users.
func (h *Handlers) AccessDenied(c tele.Context) error {
	return tghelpers.SendText(c, textAccessDenied)
}

// RateLimited answers throttled updates.
func (h *Handlers) RateLimited(c tele.Context) error {
	if c.Callback() != nil {
		return c.Respond(&tele.CallbackResponse{Text: textRateLimited})
	}
	return nil
}

func (h *Handlers) unknownText(c tele.Context) error {
	return tghelpers.SendText(c, textUnknownText)
}

func (h *Handlers) admin(c tele.Context) bool {
	u := c.Sender()
	return u != nil && h.isAdmin(u.ID)
}

func userOf(c tele.Context) (shop.UserID, bool) {
	u := c.Sender()
	if u == nil || u.ID == 0 {
		return 0, false
	}
	return shop.UserID(u.ID), true
}

// replyError renders known domain errors as plain messages. Anything else is
// a storage failure: the user gets a generic text and err goes to the handler log.
func (h *Handlers) replyError(c tele.Context, err error) error {
	var text string
	switch {
	case errors.Is(err, shop.ErrCartEmpty):
		text = textCheckoutEmpty
	case errors.Is(err, shop.ErrCheckoutInProgress):
		text = textCheckoutInProgress
	case errors.Is(err, shop.ErrNoCheckout):
		text = textNoCheckout
	case errors.Is(err, shop.ErrEmptyInput):
		text = textEmptyInput
	case errors.Is(err, shop.ErrUnknownProduct):
		text = textUnknownItem
	case errors.Is(err, shop.ErrAwaitingConfirmation):
		return tghelpers.SendHTML(c, textAwaitConfirmation, confirmMarkup())
	default:
		if sendErr := tghelpers.SendText(c, textStorageError); sendErr != nil {
			logger.Warn(tghelpers.BuildContext(c), component, "reply.fail",
				slog.String("status", "fail"),
				slog.String("err", sendErr.Error()),
			)
		}
		return err
	}
	return tghelpers.SendText(c, text)
}
