package middleware

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/starshop/core/logger"
	tghelpers "github.com/m3rciful/starshop/core/telegram/helpers"
)

func messageCtx(updateID int, userID int64, text string) tele.Context {
	return tele.NewContext(nil, tele.Update{
		ID: updateID,
		Message: &tele.Message{
			Text:   text,
			Sender: &tele.User{ID: userID},
			Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
		},
	})
}

func callbackCtx(updateID int, userID int64, data string) tele.Context {
	return tele.NewContext(nil, tele.Update{
		ID: updateID,
		Callback: &tele.Callback{
			Data:   data,
			Sender: &tele.User{ID: userID},
		},
	})
}

func counting(calls *int) tele.HandlerFunc {
	return func(tele.Context) error {
		*calls++
		return nil
	}
}

func TestAdminOnlyMiddleware(t *testing.T) {
	var calls, rejected int
	mw := AdminOnlyMiddleware(AdminOptions{
		IsAdmin:  func(id int64) bool { return id == 1 },
		OnReject: counting(&rejected),
	})
	h := mw(counting(&calls))

	require.NoError(t, h(messageCtx(1, 1, "/export")))
	require.NoError(t, h(messageCtx(2, 2, "/export")))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, rejected)

	var open int
	require.NoError(t, AdminOnlyMiddleware(AdminOptions{})(counting(&open))(messageCtx(3, 1, "/export")))
	assert.Zero(t, open, "no predicate means nobody is an operator")
}

func TestRateLimitMiddleware(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	var calls, limited int
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Second,
		Exclude:   map[string]struct{}{"callback": {}},
		OnLimited: counting(&limited),
		Now:       func() time.Time { return now },
	})
	h := mw(counting(&calls))

	require.NoError(t, h(messageCtx(1, 7, "hi")))
	require.NoError(t, h(messageCtx(2, 7, "hi again")))
	require.NoError(t, h(messageCtx(3, 8, "other user")))
	require.NoError(t, h(callbackCtx(4, 7, "\fcart")))
	now = now.Add(time.Second)
	require.NoError(t, h(messageCtx(5, 7, "later")))

	assert.Equal(t, 4, calls)
	assert.Equal(t, 1, limited)
}

func TestRecoverMiddleware(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	assert.NoError(t, h(messageCtx(1, 1, "x")))

	want := errors.New("plain")
	h = RecoverMiddleware(func(tele.Context) error { return want })
	assert.ErrorIs(t, h(messageCtx(2, 1, "x")), want)
}

func TestLoggerMiddlewareStoresContext(t *testing.T) {
	c := callbackCtx(42, 7, "\fproduct|grazax")
	var seen string
	h := LoggerMiddleware(func(c tele.Context) error {
		ctx, ok := tghelpers.ContextFrom(c)
		require.True(t, ok)
		seen = logger.RIDFrom(ctx)
		return nil
	})
	require.NoError(t, h(c))
	assert.Equal(t, "42:0:7", seen)
}

// sinkCtx accepts every outgoing message without a bot.
type sinkCtx struct{ tele.Context }

func (sinkCtx) Send(any, ...any) error       { return nil }
func (sinkCtx) EditOrSend(any, ...any) error { return nil }

func TestMessageMetricsCounters(t *testing.T) {
	c := sinkCtx{messageCtx(1, 1, "x")}
	msgs, kb := GetCounters(c)
	assert.Zero(t, msgs)
	assert.False(t, kb)

	h := MessageMetricsMiddleware(func(c tele.Context) error {
		require.NoError(t, c.Send("plain"))
		return c.EditOrSend("menu", &tele.SendOptions{ReplyMarkup: &tele.ReplyMarkup{}})
	})
	require.NoError(t, h(c))
	msgs, kb = GetCounters(c)
	assert.Equal(t, 2, msgs)
	assert.True(t, kb)
}
