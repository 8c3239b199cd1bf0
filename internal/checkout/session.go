package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/m3rciful/starshop/internal/shop"
)

// State is the step of a checkout conversation.
type State string

const (
	Idle                  State = ""
	AwaitingRecipientName State = "awaiting_recipient_name"
	AwaitingAddress       State = "awaiting_address"
	AwaitingConfirmation  State = "awaiting_confirmation"
)

func (s State) String() string {
	if s == Idle {
		return "idle"
	}
	return string(s)
}

// Session is the per-user conversation record kept between messages.
type Session struct {
	State         State     `json:"state"`
	RecipientName string    `json:"recipient_name,omitempty"`
	Address       string    `json:"address,omitempty"`
	StartedAt     time.Time `json:"started_at"`
}

// SessionStore keeps checkout sessions. Get reports ok=false for users without one.
type SessionStore interface {
	Get(ctx context.Context, uid shop.UserID) (Session, bool, error)
	Put(ctx context.Context, uid shop.UserID, s Session) error
	Delete(ctx context.Context, uid shop.UserID) error
}

// MemorySessions is a process-local SessionStore.
type MemorySessions struct {
	mu       sync.RWMutex
	sessions map[shop.UserID]Session
}

var _ SessionStore = (*MemorySessions)(nil)

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{sessions: make(map[shop.UserID]Session)}
}

func (m *MemorySessions) Get(ctx context.Context, uid shop.UserID) (Session, bool, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, false, shop.StorageError("get_session", err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[uid]
	return s, ok, nil
}

func (m *MemorySessions) Put(ctx context.Context, uid shop.UserID, s Session) error {
	if err := ctx.Err(); err != nil {
		return shop.StorageError("put_session", err)
	}
	m.mu.Lock()
	m.sessions[uid] = s
	m.mu.Unlock()
	return nil
}

func (m *MemorySessions) Delete(ctx context.Context, uid shop.UserID) error {
	if err := ctx.Err(); err != nil {
		return shop.StorageError("delete_session", err)
	}
	m.mu.Lock()
	delete(m.sessions, uid)
	m.mu.Unlock()
	return nil
}

// Len reports the number of live sessions.
func (m *MemorySessions) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
