package bot

import (
	"bytes"
	"log/slog"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/starshop/core/logger"
	"github.com/m3rciful/starshop/core/telegram/format"
	tghelpers "github.com/m3rciful/starshop/core/telegram/helpers"
	"github.com/m3rciful/starshop/internal/export"
	"github.com/m3rciful/starshop/internal/shop"
)

// maxMessageRunes keeps replies under Telegram's 4096 character limit.
const maxMessageRunes = 4000

func clip(s string) string {
	return format.Truncate(s, maxMessageRunes)
}

func (h *Handlers) adminPanel(c tele.Context) error {
	return tghelpers.EditOrSendHTML(c, textAdminPanel, adminPanelMarkup())
}

func (h *Handlers) users(c tele.Context) error {
	ids, err := h.store.ListUsers(tghelpers.BuildContext(c))
	if err != nil {
		return h.replyError(c, err)
	}
	return tghelpers.EditOrSendHTML(c, clip(usersText(ids)), backToAdminMarkup())
}

func (h *Handlers) adminStats(c tele.Context) error {
	uid, ok := userOf(c)
	if !ok {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	ids, err := h.store.ListUsers(ctx)
	if err != nil {
		return h.replyError(c, err)
	}
	orders, err := h.store.Orders(ctx, uid)
	if err != nil {
		return h.replyError(c, err)
	}
	return tghelpers.EditOrSendHTML(c, adminStatsText(len(ids), orders), mainMenuMarkup(true, h.siteURL))
}

// parseAddStars reads "<user_id> <amount>"; the amount may be negative but not zero.
func parseAddStars(args []string) (shop.UserID, int64, bool) {
	if len(args) != 2 {
		return 0, 0, false
	}
	uid, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || uid <= 0 {
		return 0, 0, false
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || amount == 0 {
		return 0, 0, false
	}
	return shop.UserID(uid), amount, true
}

func (h *Handlers) addStars(c tele.Context) error {
	uid, amount, ok := parseAddStars(c.Args())
	if !ok {
		return tghelpers.SendText(c, textAddStarsHelp)
	}
	ctx := tghelpers.BuildContext(c)
	balance, err := h.store.AdjustStars(ctx, uid, amount)
	if err != nil {
		return h.replyError(c, err)
	}
	logger.Info(ctx, component, "stars.granted",
		slog.String("status", "ok"),
		slog.Int64("target_user_id", int64(uid)),
		slog.Int64("delta", amount),
		slog.Int64("stars", balance),
	)
	return tghelpers.SendText(c, addStarsDoneText(uid, balance))
}

func (h *Handlers) exportOrders(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	orders, err := h.store.ExportOrders(ctx)
	if err != nil {
		return h.replyError(c, err)
	}
	var buf bytes.Buffer
	if err := export.WriteOrders(&buf, orders); err != nil {
		return h.replyError(c, err)
	}
	doc := &tele.Document{
		File:     tele.FromReader(&buf),
		FileName: export.FileName(h.now()),
		MIME:     "text/csv",
	}
	if err := tghelpers.SendDocument(c, doc); err != nil {
		return err
	}
	logger.Info(ctx, component, "orders.exported",
		slog.String("status", "ok"),
		slog.Int("count", len(orders)),
	)
	if c.Callback() != nil {
		return tghelpers.SendText(c, textFileSent)
	}
	return nil
}

func (h *Handlers) beginBroadcast(c tele.Context) error {
	return h.enterState(c, stateBroadcast, textAskBroadcast)
}

// broadcastCommand sends "/broadcast <text>" right away and asks for the text otherwise.
func (h *Handlers) broadcastCommand(c tele.Context) error {
	if msg := c.Message(); msg != nil {
		if text := strings.TrimSpace(msg.Payload); text != "" {
			return h.broadcast(c, text)
		}
	}
	return h.beginBroadcast(c)
}

func (h *Handlers) onBroadcastText(c tele.Context) error {
	uid, ok := userOf(c)
	if !ok {
		return nil
	}
	if !h.admin(c) {
		h.states.Clear(int64(uid))
		return h.AccessDenied(c)
	}
	text := trimmedText(c)
	if text == "" {
		return h.replyError(c, shop.ErrEmptyInput)
	}
	h.states.Clear(int64(uid))
	return h.broadcast(c, text)
}

func (h *Handlers) broadcast(c tele.Context, text string) error {
	ctx := tghelpers.BuildContext(c)
	ids, err := h.store.ListUsers(ctx)
	if err != nil {
		return h.replyError(c, err)
	}
	rep := h.notifier.Broadcast(ctx, ids, textBroadcastMark+text)
	return tghelpers.SendText(c, broadcastDoneText(rep))
}
