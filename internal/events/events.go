// Package events publishes storefront domain events. Publishing is
// best-effort and happens after the state change is committed.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/starshop/core/logger"
	"github.com/m3rciful/starshop/internal/shop"
)

const component = "events"

const (
	TypeCartItemAdded = "cart.item_added"
	TypeOrderPlaced   = "order.placed"
)

// Event is the envelope written to the bus.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	UserID     int64           `json:"user_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Publisher writes events somewhere.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

type cartItemAdded struct {
	ProductKey string `json:"product_key"`
	Quantity   int    `json:"quantity"`
}

type orderPlaced struct {
	OrderID   int64            `json:"order_id"`
	Items     []shop.OrderItem `json:"items"`
	Total     int64            `json:"total"`
	CreatedAt string           `json:"created_at"`
}

func newEvent(typ string, uid shop.UserID, payload any, now time.Time) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		UserID:     int64(uid),
		OccurredAt: now.UTC(),
		Payload:    raw,
	}, nil
}

// CartItemAdded builds a cart.item_added event.
func CartItemAdded(uid shop.UserID, productKey string, qty int) Event {
	ev, _ := newEvent(TypeCartItemAdded, uid, cartItemAdded{ProductKey: productKey, Quantity: qty}, time.Now())
	return ev
}

// OrderPlaced builds an order.placed event.
func OrderPlaced(o shop.Order) Event {
	items := o.Items
	if items == nil {
		items = []shop.OrderItem{}
	}
	ev, _ := newEvent(TypeOrderPlaced, o.UserID, orderPlaced{
		OrderID:   o.ID,
		Items:     items,
		Total:     o.Total,
		CreatedAt: o.CreatedAtText(),
	}, o.CreatedAt)
	return ev
}

// Emit publishes ev and logs instead of failing.
func Emit(ctx context.Context, p Publisher, ev Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		logger.Warn(ctx, component, "publish.fail",
			slog.String("status", "fail"),
			slog.String("type", ev.Type),
			slog.String("event_id", ev.ID),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.Debug(ctx, component, "publish",
		slog.String("status", "ok"),
		slog.String("type", ev.Type),
		slog.String("event_id", ev.ID),
	)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
