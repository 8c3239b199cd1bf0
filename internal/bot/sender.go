package bot

import (
	"context"
	"errors"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/starshop/internal/notify"
)

// ErrSenderNotBound is returned by TelegramSender before Bind.
var ErrSenderNotBound = errors.New("telegram sender: bot not bound")

// API is the part of *tele.Bot used to push messages outside an update.
type API interface {
	Send(to tele.Recipient, what any, opts ...any) (*tele.Message, error)
}

// TelegramSender delivers notifier messages through the bot. The bot only
// exists once the runtime starts, so it is bound late.
type TelegramSender struct {
	mu  sync.RWMutex
	api API
}

var _ notify.Sender = (*TelegramSender)(nil)

func NewTelegramSender() *TelegramSender {
	return &TelegramSender{}
}

// Bind sets (or with nil, clears) the bot used for delivery.
func (s *TelegramSender) Bind(api API) {
	s.mu.Lock()
	s.api = api
	s.mu.Unlock()
}

func (s *TelegramSender) SendText(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	api := s.api
	s.mu.RUnlock()
	if api == nil {
		return ErrSenderNotBound
	}
	_, err := api.Send(tele.ChatID(chatID), text, &tele.SendOptions{DisableWebPagePreview: true})
	return err
}
