package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/starshop/internal/shop"
)

type captureWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func (c *captureWriter) Close() error {
	c.closed = true
	return nil
}

func TestOrderPlacedEvent(t *testing.T) {
	created := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	ev := OrderPlaced(shop.Order{
		ID: 5, UserID: 42, Total: 22600, CreatedAt: created,
		Items: []shop.OrderItem{{ProductKey: "ragvizax", Quantity: 2}},
	})

	_, err := uuid.Parse(ev.ID)
	require.NoError(t, err)
	assert.Equal(t, TypeOrderPlaced, ev.Type)
	assert.Equal(t, int64(42), ev.UserID)
	assert.Equal(t, created, ev.OccurredAt)
	assert.JSONEq(t,
		`{"order_id":5,"items":[["ragvizax",2]],"total":22600,"created_at":"2025-03-14T09:00:00.000000Z"}`,
		string(ev.Payload))
}

func TestCartItemAddedEvent(t *testing.T) {
	ev := CartItemAdded(7, "grazax", 1)
	assert.Equal(t, TypeCartItemAdded, ev.Type)
	assert.JSONEq(t, `{"product_key":"grazax","quantity":1}`, string(ev.Payload))
	assert.NotEqual(t, ev.ID, CartItemAdded(7, "grazax", 1).ID)
}

func TestKafkaPublisherWritesKeyedMessage(t *testing.T) {
	w := &captureWriter{}
	p := &KafkaPublisher{w: w, topic: "starshop.events"}
	ev := CartItemAdded(7, "grazax", 1)

	require.NoError(t, p.Publish(context.Background(), ev))
	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "7", string(msg.Key))
	assert.Equal(t, []kafka.Header{
		{Key: "event_type", Value: []byte(TypeCartItemAdded)},
		{Key: "event_id", Value: []byte(ev.ID)},
	}, msg.Headers)

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, ev.ID, decoded.ID)
	assert.JSONEq(t, string(ev.Payload), string(decoded.Payload))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisherWrapsWriteError(t *testing.T) {
	cause := errors.New("leader not available")
	p := &KafkaPublisher{w: &captureWriter{err: cause}, topic: "t"}
	err := p.Publish(context.Background(), CartItemAdded(1, "x", 1))
	assert.ErrorIs(t, err, cause)
}

func TestEmitSwallowsErrors(t *testing.T) {
	p := &KafkaPublisher{w: &captureWriter{err: errors.New("down")}, topic: "t"}
	assert.NotPanics(t, func() {
		Emit(context.Background(), p, CartItemAdded(1, "x", 1))
		Emit(context.Background(), nil, CartItemAdded(1, "x", 1))
		Emit(context.Background(), Nop{}, CartItemAdded(1, "x", 1))
	})
}
