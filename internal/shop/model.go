// Package shop holds the storefront domain types and the persistence contract
// shared by the store backends, the checkout machine and the bot.
package shop

import (
	"encoding/json"
	"fmt"
	"time"
)

// UserID is the platform-assigned user identifier.
type UserID int64

// TimestampLayout is the fixed-width UTC layout used for created_at; lexical order equals time order.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// CartLine is a single product line of a user's cart.
type CartLine struct {
	ProductKey string `db:"drug_key"`
	Quantity   int    `db:"quantity"`
}

// OrderItem is a snapshot of one cart line taken when the order was placed.
type OrderItem struct {
	ProductKey string
	Quantity   int
}

// MarshalJSON encodes the item as a [key, quantity] pair.
func (i OrderItem) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{i.ProductKey, i.Quantity})
}

// UnmarshalJSON decodes a [key, quantity] pair.
func (i *OrderItem) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("order item: expected pair, got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &i.ProductKey); err != nil {
		return fmt.Errorf("order item key: %w", err)
	}
	if err := json.Unmarshal(pair[1], &i.Quantity); err != nil {
		return fmt.Errorf("order item quantity: %w", err)
	}
	return nil
}

// ItemsFromCart snapshots cart lines into order items.
func ItemsFromCart(lines []CartLine) []OrderItem {
	items := make([]OrderItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, OrderItem{ProductKey: l.ProductKey, Quantity: l.Quantity})
	}
	return items
}

// EncodeItems serializes items for storage.
func EncodeItems(items []OrderItem) (string, error) {
	if items == nil {
		items = []OrderItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeItems parses items serialized by EncodeItems.
func DecodeItems(raw string) ([]OrderItem, error) {
	if raw == "" {
		return nil, nil
	}
	var items []OrderItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, err
	}
	return items, nil
}

// NewOrder carries everything needed to record an order.
type NewOrder struct {
	UserID        UserID
	Items         []OrderItem
	Total         int64
	RecipientName string
	Address       string
}

// Order is an immutable record of a completed purchase.
type Order struct {
	ID            int64
	UserID        UserID
	Items         []OrderItem
	Total         int64
	RecipientName string
	Address       string
	CreatedAt     time.Time
}

// CreatedAtText renders CreatedAt in the persisted layout.
func (o Order) CreatedAtText() string {
	return FormatTimestamp(o.CreatedAt)
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a persisted created_at value.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(TimestampLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
