package state

import (
	"context"

	tele "gopkg.in/telebot.v4"
)

// State identifies a finite-state-machine step used in conversations.
type State string

// StateIdle indicates there is no active conversation with the user.
const StateIdle State = "idle"

// Manager orchestrates user conversation steps.
type Manager interface {
	SetState(userID int64, st State)
	GetState(userID int64) State
	HasState(userID int64) bool
	Clear(userID int64)

	// Handle binds the handler run for text received in st.
	Handle(st State, h tele.HandlerFunc)

	InProgress(ctx context.Context, userID int64) bool
	ManagerHandler(c tele.Context) error
}
