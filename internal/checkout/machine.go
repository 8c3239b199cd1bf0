// Package checkout drives the per-user conversation that turns a cart into an
// order: recipient name, then address, then confirmation against the balance.
package checkout

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/starshop/core/logger"
	"github.com/m3rciful/starshop/internal/catalog"
	"github.com/m3rciful/starshop/internal/pkg/keylock"
	"github.com/m3rciful/starshop/internal/shop"
)

const component = "checkout"

// Outcome is the terminal result of a conversation.
type Outcome string

const (
	Confirmed         Outcome = "confirmed"
	Cancelled         Outcome = "cancelled"
	InsufficientFunds Outcome = "insufficient_funds"
	CartEmptied       Outcome = "cart_emptied"
)

// Summary is what the user is asked to confirm.
type Summary struct {
	RecipientName string
	Address       string
	Lines         []catalog.PricedLine
	Total         int64
}

// Step describes the conversation after a Submit.
type Step struct {
	State   State
	Summary *Summary
}

// Result is returned when a conversation ends.
type Result struct {
	Outcome Outcome
	Order   shop.Order
	Total   int64
	Balance int64
}

// OrderListener is told about every committed order.
type OrderListener interface {
	OrderPlaced(ctx context.Context, order shop.Order)
}

// OrderListenerFunc adapts a function to OrderListener.
type OrderListenerFunc func(ctx context.Context, order shop.Order)

func (f OrderListenerFunc) OrderPlaced(ctx context.Context, order shop.Order) { f(ctx, order) }

// Machine serializes transitions per user; different users never contend.
type Machine struct {
	store     shop.Store
	catalog   *catalog.Catalog
	sessions  SessionStore
	locks     *keylock.Map[shop.UserID]
	listeners []OrderListener
	now       func() time.Time
}

func NewMachine(store shop.Store, cat *catalog.Catalog, sessions SessionStore, listeners ...OrderListener) *Machine {
	if sessions == nil {
		sessions = NewMemorySessions()
	}
	return &Machine{
		store:     store,
		catalog:   cat,
		sessions:  sessions,
		locks:     keylock.New[shop.UserID](),
		listeners: listeners,
		now:       time.Now,
	}
}

// Begin starts a conversation for a non-empty cart.
func (m *Machine) Begin(ctx context.Context, uid shop.UserID) error {
	unlock := m.locks.Lock(uid)
	defer unlock()

	if _, ok, err := m.sessions.Get(ctx, uid); err != nil {
		return err
	} else if ok {
		return shop.ErrCheckoutInProgress
	}
	lines, err := m.store.Cart(ctx, uid)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return shop.ErrCartEmpty
	}
	s := Session{State: AwaitingRecipientName, StartedAt: m.now().UTC()}
	if err := m.sessions.Put(ctx, uid, s); err != nil {
		return err
	}
	m.logTransition(ctx, uid, Idle, s.State)
	return nil
}

// Submit feeds a free-text reply into the current step.
func (m *Machine) Submit(ctx context.Context, uid shop.UserID, text string) (Step, error) {
	unlock := m.locks.Lock(uid)
	defer unlock()

	s, ok, err := m.sessions.Get(ctx, uid)
	if err != nil {
		return Step{}, err
	}
	if !ok {
		return Step{}, shop.ErrNoCheckout
	}
	if s.State == AwaitingConfirmation {
		return Step{State: s.State}, shop.ErrAwaitingConfirmation
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Step{State: s.State}, shop.ErrEmptyInput
	}

	from := s.State
	var step Step
	switch s.State {
	case AwaitingRecipientName:
		s.RecipientName = text
		s.State = AwaitingAddress
		step = Step{State: s.State}
	case AwaitingAddress:
		lines, err := m.store.Cart(ctx, uid)
		if err != nil {
			return Step{State: s.State}, err
		}
		s.Address = text
		s.State = AwaitingConfirmation
		step = Step{State: s.State, Summary: &Summary{
			RecipientName: s.RecipientName,
			Address:       s.Address,
			Lines:         m.catalog.Priced(lines),
			Total:         m.catalog.Total(lines),
		}}
	default:
		return Step{}, shop.ErrNoCheckout
	}
	if err := m.sessions.Put(ctx, uid, s); err != nil {
		return Step{State: from}, err
	}
	m.logTransition(ctx, uid, from, s.State)
	return step, nil
}

// Confirm places the order from the cart as it is now.
func (m *Machine) Confirm(ctx context.Context, uid shop.UserID) (Result, error) {
	unlock := m.locks.Lock(uid)
	defer unlock()

	s, ok, err := m.sessions.Get(ctx, uid)
	if err != nil {
		return Result{}, err
	}
	if !ok || s.State != AwaitingConfirmation {
		return Result{}, shop.ErrNoCheckout
	}

	lines, err := m.store.Cart(ctx, uid)
	if err != nil {
		return Result{}, err
	}
	if len(lines) == 0 {
		return m.finish(ctx, uid, s, Result{Outcome: CartEmptied})
	}
	total := m.catalog.Total(lines)
	balance, err := m.store.Stars(ctx, uid)
	if err != nil {
		return Result{}, err
	}
	if balance < total {
		return m.finish(ctx, uid, s, Result{Outcome: InsufficientFunds, Total: total, Balance: balance})
	}

	order, err := m.store.PlaceOrder(ctx, shop.NewOrder{
		UserID:        uid,
		Items:         shop.ItemsFromCart(lines),
		Total:         total,
		RecipientName: s.RecipientName,
		Address:       s.Address,
	})
	if errors.Is(err, shop.ErrInsufficientFunds) {
		// balance moved between the read and the locked re-check
		balance, _ = m.store.Stars(ctx, uid)
		return m.finish(ctx, uid, s, Result{Outcome: InsufficientFunds, Total: total, Balance: balance})
	}
	if err != nil {
		return Result{}, err
	}
	res, err := m.finish(ctx, uid, s, Result{
		Outcome: Confirmed,
		Order:   order,
		Total:   total,
		Balance: balance - total,
	})
	for _, l := range m.listeners {
		l.OrderPlaced(ctx, order)
	}
	return res, err
}

// Cancel abandons an active conversation without touching cart or balance.
func (m *Machine) Cancel(ctx context.Context, uid shop.UserID) (Result, error) {
	unlock := m.locks.Lock(uid)
	defer unlock()

	s, ok, err := m.sessions.Get(ctx, uid)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, shop.ErrNoCheckout
	}
	return m.finish(ctx, uid, s, Result{Outcome: Cancelled})
}

// State reports the current step; Idle when no conversation is active.
func (m *Machine) State(ctx context.Context, uid shop.UserID) (State, error) {
	s, ok, err := m.sessions.Get(ctx, uid)
	if err != nil || !ok {
		return Idle, err
	}
	return s.State, nil
}

// Active reports whether uid is mid-checkout. Storage failures count as inactive.
func (m *Machine) Active(ctx context.Context, uid shop.UserID) bool {
	st, err := m.State(ctx, uid)
	return err == nil && st != Idle
}

func (m *Machine) finish(ctx context.Context, uid shop.UserID, s Session, res Result) (Result, error) {
	if err := m.sessions.Delete(ctx, uid); err != nil {
		if res.Outcome != Confirmed {
			return res, err
		}
		// The order is committed; a stale session only leads to CartEmptied later.
		logger.Warn(ctx, component, "session.delete",
			slog.String("status", "fail"),
			slog.Int64("user_id", int64(uid)),
			slog.Int64("order_id", res.Order.ID),
			slog.String("err", err.Error()),
		)
	}
	status := "ok"
	if res.Outcome != Confirmed {
		status = "skip"
	}
	logger.Info(ctx, component, "checkout.finished",
		slog.String("status", status),
		slog.Int64("user_id", int64(uid)),
		slog.String("outcome", string(res.Outcome)),
		slog.String("from", s.State.String()),
		slog.Int64("total", res.Total),
		slog.Int64("order_id", res.Order.ID),
	)
	return res, nil
}

func (m *Machine) logTransition(ctx context.Context, uid shop.UserID, from, to State) {
	logger.Debug(ctx, component, "state.changed",
		slog.String("status", "ok"),
		slog.Int64("user_id", int64(uid)),
		slog.String("from", from.String()),
		slog.String("to", to.String()),
	)
}
