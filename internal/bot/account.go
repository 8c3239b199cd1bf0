package bot

import (
	"strings"

	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/m3rciful/starshop/core/telegram/helpers"
)

func trimmedText(c tele.Context) string {
	return strings.TrimSpace(c.Text())
}

func (h *Handlers) stars(c tele.Context) error {
	uid, ok := userOf(c)
	if !ok {
		return nil
	}
	n, err := h.store.Stars(tghelpers.BuildContext(c), uid)
	if err != nil {
		return h.replyError(c, err)
	}
	return tghelpers.SendText(c, starsText(n))
}

func (h *Handlers) history(c tele.Context) error {
	uid, ok := userOf(c)
	if !ok {
		return nil
	}
	orders, err := h.store.Orders(tghelpers.BuildContext(c), uid)
	if err != nil {
		return h.replyError(c, err)
	}
	return tghelpers.SendText(c, clip(historyText(h.catalog, orders)))
}

func (h *Handlers) myStats(c tele.Context) error {
	uid, ok := userOf(c)
	if !ok {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	balance, err := h.store.Stars(ctx, uid)
	if err != nil {
		return h.replyError(c, err)
	}
	orders, err := h.store.Orders(ctx, uid)
	if err != nil {
		return h.replyError(c, err)
	}
	return tghelpers.EditOrSendHTML(c, myStatsText(balance, orders), mainMenuMarkup(h.admin(c), h.siteURL))
}
