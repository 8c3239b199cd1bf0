package router

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/starshop/core/telegram"
	"github.com/m3rciful/starshop/core/telegram/commands"
)

type fakeFSM struct {
	active  map[int64]bool
	handled int
}

func (f *fakeFSM) InProgress(_ context.Context, userID int64) bool { return f.active[userID] }

func (f *fakeFSM) ManagerHandler(tele.Context) error {
	f.handled++
	return nil
}

func textCtx(userID int64, text string) tele.Context {
	return tele.NewContext(nil, tele.Update{
		ID: 1,
		Message: &tele.Message{
			Text:   text,
			Sender: &tele.User{ID: userID},
			Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
		},
	})
}

func routeFor(routes []tg.Route, endpoint string) tele.HandlerFunc {
	for _, r := range routes {
		if r.Endpoint == endpoint {
			return r.Handler
		}
	}
	return nil
}

func TestTextRoutesPrefersConversation(t *testing.T) {
	fsm := &fakeFSM{active: map[int64]bool{7: true}}
	reg := tg.NewRegistry()
	var commandCalls, fallbackCalls int
	require.NoError(t, reg.RegisterCommand("/cart", commands.Command{Description: "cart", Handler: func(tele.Context) error {
		commandCalls++
		return nil
	}}))
	reg.SetTextFallback(func(tele.Context) error {
		fallbackCalls++
		return nil
	})

	h := routeFor(TextRoutes(fsm, reg, TextOptions{}), tele.OnText)
	require.NotNil(t, h)

	require.NoError(t, h(textCtx(7, "Иван Иванов")))
	require.NoError(t, h(textCtx(8, "cart")))
	require.NoError(t, h(textCtx(8, "hello")))

	assert.Equal(t, 1, fsm.handled)
	assert.Equal(t, 1, commandCalls)
	assert.Equal(t, 1, fallbackCalls)
}

func TestTextRoutesSkipsAdminCommandsByText(t *testing.T) {
	reg := tg.NewRegistry()
	var calls int
	require.NoError(t, reg.RegisterCommand("/export", commands.Command{Description: "export", AdminOnly: true, Handler: func(tele.Context) error {
		calls++
		return nil
	}}))
	h := routeFor(TextRoutes(nil, reg, TextOptions{}), tele.OnText)
	require.NoError(t, h(textCtx(1, "export")))
	assert.Zero(t, calls)
}

func TestCommandRoutesGuardsAdminCommands(t *testing.T) {
	reg := tg.NewRegistry()
	var calls, rejected int
	require.NoError(t, reg.RegisterCommand("/export", commands.Command{Description: "export", AdminOnly: true, Handler: func(tele.Context) error {
		calls++
		return errors.New("handler errors are logged, not returned")
	}}))
	routes := CommandRoutes(reg, CommandRouteOptions{
		IsAdmin: func(id int64) bool { return id == 1 },
		OnAdminReject: func(tele.Context) error {
			rejected++
			return nil
		},
	})
	h := routeFor(routes, "/export")
	require.NotNil(t, h)

	assert.NoError(t, h(textCtx(1, "/export")))
	assert.NoError(t, h(textCtx(2, "/export")))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, rejected)
}

type codedErr struct{}

func (codedErr) Error() string { return "coded" }
func (codedErr) Code() string  { return "cart empty" }

type plainErr struct{}

func (*plainErr) Error() string { return "plain" }

func TestDeriveErrorCode(t *testing.T) {
	assert.Equal(t, "", deriveErrorCode(nil))
	assert.Equal(t, "CART_EMPTY", deriveErrorCode(fmt.Errorf("wrap: %w", codedErr{})))
	assert.Equal(t, "PLAINERR", deriveErrorCode(&plainErr{}))
	assert.Equal(t, "HTTP_4XX", deriveErrorCode(fmt.Errorf("send: %w", errors.New("telegram: chat not found (400)"))))
}

func TestNormalizeHandlerName(t *testing.T) {
	assert.Equal(t, "addstars", normalizeHandlerName("/AddStars"))
	assert.Equal(t, "unknown", normalizeHandlerName(" "))
	assert.Equal(t, "admin_panel", normalizeHandlerName("admin panel"))
}
