package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

const stateBroadcast State = "broadcast_text"

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

func TestMemoryManagerStates(t *testing.T) {
	m := NewMemoryManager()
	ctx := context.Background()

	assert.Equal(t, StateIdle, m.GetState(1))
	assert.False(t, m.InProgress(ctx, 1))

	m.SetState(1, stateBroadcast)
	assert.True(t, m.InProgress(ctx, 1))
	assert.False(t, m.InProgress(ctx, 2))

	assert.Equal(t, stateBroadcast, m.GetState(1))

	m.SetState(1, StateIdle)
	assert.False(t, m.HasState(1))
}

func TestManagerHandlerDispatchesPerInstance(t *testing.T) {
	a, b := NewMemoryManager(), NewMemoryManager()
	var got string
	a.Handle(stateBroadcast, func(c tele.Context) error {
		got = c.Text()
		return nil
	})

	a.SetState(5, stateBroadcast)
	require.NoError(t, a.ManagerHandler(textCtx(5, "Скидки!")))
	assert.Equal(t, "Скидки!", got)

	b.SetState(5, stateBroadcast)
	require.NoError(t, b.ManagerHandler(textCtx(5, "ignored")))
	assert.False(t, b.HasState(5), "unhandled state is cleared")
	assert.Equal(t, "Скидки!", got)
}
