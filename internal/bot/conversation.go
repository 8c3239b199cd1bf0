package bot

import (
	"context"
	"log/slog"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/starshop/core/logger"
	tghelpers "github.com/m3rciful/starshop/core/telegram/helpers"
	"github.com/m3rciful/starshop/core/telegram/state"
	"github.com/m3rciful/starshop/internal/checkout"
	"github.com/m3rciful/starshop/internal/shop"
)

// Single-step conversations kept in the state manager. Checkout has its own machine.
const (
	stateBroadcast state.State = "admin_broadcast"
	stateReport    state.State = "report_problem"
)

const textCancelled = "Действие отменено"

// InProgress reports whether free text from userID belongs to a conversation.
func (h *Handlers) InProgress(ctx context.Context, userID int64) bool {
	return h.states.HasState(userID) || h.checkout.Active(ctx, shop.UserID(userID))
}

// cancelWords end the active conversation when typed instead of an answer.
var cancelWords = map[string]struct{}{"отмена": {}, "/cancel": {}}

// ManagerHandler routes conversation text to the active step. Cancel words
// and slash commands are never taken as an answer.
func (h *Handlers) ManagerHandler(c tele.Context) error {
	text := strings.ToLower(trimmedText(c))
	if cmd, _, _ := strings.Cut(text, "@"); cmd != "" {
		if _, ok := cancelWords[cmd]; ok {
			return h.cancel(c)
		}
	}
	if strings.HasPrefix(text, "/") {
		return tghelpers.SendText(c, textCommandInDialog)
	}
	if u := c.Sender(); u != nil && h.states.HasState(u.ID) {
		return h.states.ManagerHandler(c)
	}
	return h.submitCheckout(c)
}

func (h *Handlers) beginCheckout(c tele.Context) error {
	uid, ok := userOf(c)
	if !ok {
		return nil
	}
	if err := h.checkout.Begin(tghelpers.BuildContext(c), uid); err != nil {
		return h.replyError(c, err)
	}
	h.states.Clear(int64(uid))
	return tghelpers.SendText(c, textAskName)
}

func (h *Handlers) submitCheckout(c tele.Context) error {
	uid, ok := userOf(c)
	if !ok {
		return nil
	}
	step, err := h.checkout.Submit(tghelpers.BuildContext(c), uid, c.Text())
	if err != nil {
		return h.replyError(c, err)
	}
	switch step.State {
	case checkout.AwaitingAddress:
		return tghelpers.SendText(c, textAskAddress)
	case checkout.AwaitingConfirmation:
		if step.Summary == nil {
			return nil
		}
		return tghelpers.SendHTML(c, summaryText(*step.Summary), confirmMarkup())
	}
	return nil
}

func (h *Handlers) confirm(c tele.Context) error {
	uid, ok := userOf(c)
	if !ok {
		return nil
	}
	res, err := h.checkout.Confirm(tghelpers.BuildContext(c), uid)
	if err != nil {
		return h.replyError(c, err)
	}
	switch res.Outcome {
	case checkout.Confirmed:
		return tghelpers.EditOrSendHTML(c, textOrderPlaced)
	case checkout.InsufficientFunds:
		return tghelpers.EditOrSendHTML(c, insufficientText(res))
	case checkout.CartEmptied:
		return tghelpers.EditOrSendHTML(c, textCartEmptied, mainMenuMarkup(h.admin(c), h.siteURL))
	}
	return nil
}

// cancel ends whichever conversation the user is in.
func (h *Handlers) cancel(c tele.Context) error {
	uid, ok := userOf(c)
	if !ok {
		return nil
	}
	if h.states.HasState(int64(uid)) {
		h.states.Clear(int64(uid))
		return tghelpers.EditOrSendHTML(c, textCancelled, mainMenuMarkup(h.admin(c), h.siteURL))
	}
	if _, err := h.checkout.Cancel(tghelpers.BuildContext(c), uid); err != nil {
		return h.replyError(c, err)
	}
	return tghelpers.EditOrSendHTML(c, textOrderCancelled)
}

// enterState starts a single-step conversation unless checkout is running.
func (h *Handlers) enterState(c tele.Context, st state.State, prompt string) error {
	uid, ok := userOf(c)
	if !ok {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	if h.checkout.Active(ctx, uid) {
		return h.replyError(c, shop.ErrCheckoutInProgress)
	}
	h.states.SetState(int64(uid), st)
	logger.Debug(ctx, component, "conversation.start",
		slog.String("status", "ok"),
		slog.String("state", string(st)),
	)
	return tghelpers.EditOrSendHTML(c, prompt, conversationCancelMarkup())
}

func (h *Handlers) beginReport(c tele.Context) error {
	return h.enterState(c, stateReport, textAskReport)
}

func (h *Handlers) onReportText(c tele.Context) error {
	uid, ok := userOf(c)
	if !ok {
		return nil
	}
	text := trimmedText(c)
	if text == "" {
		return h.replyError(c, shop.ErrEmptyInput)
	}
	h.states.Clear(int64(uid))
	ctx := tghelpers.BuildContext(c)
	rep := h.notifier.NotifyAdmins(ctx, problemNoticeText(uid, c.Sender().Username, text))
	logger.Info(ctx, component, "problem.reported",
		slog.String("status", "ok"),
		slog.Int("delivered", rep.Delivered),
	)
	return tghelpers.SendHTML(c, textReportSent, mainMenuMarkup(h.admin(c), h.siteURL))
}
