package state

import (
	"context"
	"log/slog"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/starshop/core/logger"
	tghelpers "github.com/m3rciful/starshop/core/telegram/helpers"
)

type session struct {
	state State
}

// MemoryManager is an in-process Manager.
type MemoryManager struct {
	mu       sync.RWMutex
	sessions map[int64]*session

	handlersMu sync.RWMutex
	handlers   map[State]tele.HandlerFunc
}

var _ Manager = (*MemoryManager)(nil)

// NewMemoryManager constructs an empty in-memory Manager.
func NewMemoryManager() *MemoryManager {
	return &MemoryManager{
		sessions: make(map[int64]*session),
		handlers: make(map[State]tele.HandlerFunc),
	}
}

func (m *MemoryManager) sessionLocked(userID int64) *session {
	s, ok := m.sessions[userID]
	if !ok {
		s = &session{state: StateIdle}
		m.sessions[userID] = s
	}
	return s
}

// SetState moves the user to st; StateIdle clears the session.
func (m *MemoryManager) SetState(userID int64, st State) {
	if st == StateIdle || st == "" {
		m.Clear(userID)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessionLocked(userID).state = st
}

// GetState returns the current state of a user, or StateIdle if none exists.
func (m *MemoryManager) GetState(userID int64) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[userID]; ok {
		return s.state
	}
	return StateIdle
}

// HasState checks if a user has an active state other than idle.
func (m *MemoryManager) HasState(userID int64) bool {
	return m.GetState(userID) != StateIdle
}

// Clear removes the entire session for a user.
func (m *MemoryManager) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

func (m *MemoryManager) Handle(st State, h tele.HandlerFunc) {
	if h == nil {
		return
	}
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()
	m.handlers[st] = h
}

func (m *MemoryManager) InProgress(_ context.Context, userID int64) bool {
	return m.HasState(userID)
}

// ManagerHandler runs the handler bound to the user's current state. A state
// without a handler is dropped so the user is not stuck in it.
func (m *MemoryManager) ManagerHandler(c tele.Context) error {
	userID := c.Sender().ID
	current := m.GetState(userID)
	ctx := tghelpers.BuildContext(c)

	m.handlersMu.RLock()
	h, ok := m.handlers[current]
	m.handlersMu.RUnlock()

	if !ok {
		logger.Debug(ctx, "tg", "fsm.manager",
			slog.String("status", "skip"),
			slog.String("state", string(current)),
		)
		m.Clear(userID)
		return nil
	}
	logger.Debug(ctx, "tg", "fsm.manager",
		slog.String("status", "ok"),
		slog.String("state", string(current)),
	)
	return h(c)
}
