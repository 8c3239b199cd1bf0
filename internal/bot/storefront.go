package bot

import (
	"errors"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/starshop/core/logger"
	"github.com/m3rciful/starshop/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/starshop/core/telegram/helpers"
	"github.com/m3rciful/starshop/internal/catalog"
	"github.com/m3rciful/starshop/internal/events"
	"github.com/m3rciful/starshop/internal/shop"
)

func (h *Handlers) start(c tele.Context) error {
	uid, ok := userOf(c)
	if !ok {
		return nil
	}
	if err := h.store.EnsureUser(tghelpers.BuildContext(c), uid); err != nil {
		return h.replyError(c, err)
	}
	return tghelpers.SendHTML(c, welcomeText(h.title), mainMenuMarkup(h.admin(c), h.siteURL))
}

func (h *Handlers) help(c tele.Context) error {
	return tghelpers.SendText(c, textHelp)
}

func (h *Handlers) mainMenu(c tele.Context) error {
	return tghelpers.EditOrSendHTML(c, textMainMenu, mainMenuMarkup(h.admin(c), h.siteURL))
}

func (h *Handlers) productList(kind catalog.Kind, header string) tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.EditOrSendHTML(c, header, productListMarkup(h.catalog.ByKind(kind)))
	}
}

func (h *Handlers) quantityInCart(c tele.Context, uid shop.UserID, key string) (int, error) {
	lines, err := h.store.Cart(tghelpers.BuildContext(c), uid)
	if err != nil {
		return 0, err
	}
	for _, l := range lines {
		if l.ProductKey == key {
			return l.Quantity, nil
		}
	}
	return 0, nil
}

func (h *Handlers) renderCard(c tele.Context, uid shop.UserID, p catalog.Product) error {
	n, err := h.quantityInCart(c, uid, p.Key)
	if err != nil {
		return h.replyError(c, err)
	}
	return tghelpers.EditOrSendHTML(c, productCardText(p, n), productCardMarkup(p.Key, n))
}

func (h *Handlers) lookupPayload(c tele.Context) (catalog.Product, error) {
	key := callbacks.CallbackPayload(c)
	p, ok := h.catalog.Lookup(key)
	if !ok {
		return catalog.Product{}, shop.ErrUnknownProduct
	}
	return p, nil
}

func (h *Handlers) viewProduct(c tele.Context) error {
	uid, ok := userOf(c)
	if !ok {
		return nil
	}
	p, err := h.lookupPayload(c)
	if err != nil {
		return h.replyError(c, err)
	}
	return h.renderCard(c, uid, p)
}

func (h *Handlers) addToCart(c tele.Context) error {
	uid, ok := userOf(c)
	if !ok {
		return nil
	}
	p, err := h.lookupPayload(c)
	if err != nil {
		return h.replyError(c, err)
	}
	ctx := tghelpers.BuildContext(c)
	if err := h.store.AddToCart(ctx, uid, p.Key, 1); err != nil {
		return h.replyError(c, err)
	}
	logger.Info(ctx, component, "cart.add",
		slog.String("status", "ok"),
		slog.String("product", p.Key),
	)
	events.Emit(ctx, h.events, events.CartItemAdded(uid, p.Key, 1))
	h.notifier.NotifyAdmins(ctx, cartNoticeText(uid, p))
	return h.renderCard(c, uid, p)
}

// removeFromCart drops one unit. Keys no longer in the catalog are still
// removable from the cart; the cart is shown instead of a product card then.
func (h *Handlers) removeFromCart(c tele.Context) error {
	uid, ok := userOf(c)
	if !ok {
		return nil
	}
	key := callbacks.CallbackPayload(c)
	if key == "" {
		return h.replyError(c, shop.ErrUnknownProduct)
	}
	if err := h.store.RemoveFromCart(tghelpers.BuildContext(c), uid, key, 1); err != nil {
		return h.replyError(c, err)
	}
	p, err := h.lookupPayload(c)
	if errors.Is(err, shop.ErrUnknownProduct) {
		return h.cart(c)
	}
	return h.renderCard(c, uid, p)
}

func (h *Handlers) cart(c tele.Context) error {
	uid, ok := userOf(c)
	if !ok {
		return nil
	}
	lines, err := h.store.Cart(tghelpers.BuildContext(c), uid)
	if err != nil {
		return h.replyError(c, err)
	}
	priced := h.catalog.Priced(lines)
	if len(priced) == 0 {
		return tghelpers.EditOrSendHTML(c, textCartEmpty, mainMenuMarkup(h.admin(c), h.siteURL))
	}
	return tghelpers.EditOrSendHTML(c, cartText(priced), cartMarkup(priced))
}

func (h *Handlers) clearCart(c tele.Context) error {
	uid, ok := userOf(c)
	if !ok {
		return nil
	}
	if err := h.store.ClearCart(tghelpers.BuildContext(c), uid); err != nil {
		return h.replyError(c, err)
	}
	return tghelpers.EditOrSendHTML(c, textCartCleared, mainMenuMarkup(h.admin(c), h.siteURL))
}
