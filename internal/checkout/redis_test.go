package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/starshop/internal/shop"
	"github.com/m3rciful/starshop/internal/store/memory"
)

func newRedisSessions(t *testing.T, ttl time.Duration) (*RedisSessions, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSessions(client, "", ttl), mr
}

func TestRedisSessionsRoundTrip(t *testing.T) {
	ctx := context.Background()
	rs, mr := newRedisSessions(t, 0)

	_, ok, err := rs.Get(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)

	started := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	in := Session{State: AwaitingAddress, RecipientName: "Анна", StartedAt: started}
	require.NoError(t, rs.Put(ctx, 7, in))
	assert.True(t, mr.Exists("starshop:checkout:7"))
	assert.Zero(t, mr.TTL("starshop:checkout:7"))

	out, ok, err := rs.Get(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in, out)

	require.NoError(t, rs.Delete(ctx, 7))
	_, ok, err = rs.Get(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisSessionsExpire(t *testing.T) {
	ctx := context.Background()
	rs, mr := newRedisSessions(t, time.Hour)

	require.NoError(t, rs.Put(ctx, 1, Session{State: AwaitingRecipientName}))
	assert.Equal(t, time.Hour, mr.TTL("starshop:checkout:1"))

	mr.FastForward(2 * time.Hour)
	_, ok, err := rs.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisSessionsCorruptValue(t *testing.T) {
	ctx := context.Background()
	rs, mr := newRedisSessions(t, 0)
	require.NoError(t, mr.Set("starshop:checkout:3", "{not json"))

	_, _, err := rs.Get(ctx, 3)
	assert.ErrorIs(t, err, shop.ErrStorage)
}

func TestRedisSessionsServerDown(t *testing.T) {
	ctx := context.Background()
	rs, mr := newRedisSessions(t, 0)
	mr.Close()

	_, _, err := rs.Get(ctx, 3)
	assert.ErrorIs(t, err, shop.ErrStorage)
	assert.ErrorIs(t, rs.Ping(ctx), shop.ErrStorage)
}

func TestMachineOverRedisSessions(t *testing.T) {
	ctx := context.Background()
	rs, _ := newRedisSessions(t, 0)
	st := memory.New()
	m := NewMachine(st, testCatalog(), rs)

	require.NoError(t, st.AddToCart(ctx, 9, "ragvizax", 2))
	_, err := st.AdjustStars(ctx, 9, 30000)
	require.NoError(t, err)

	sum := walk(t, m, 9)
	assert.Equal(t, int64(22600), sum.Total)

	// a second machine sharing the server sees the same conversation
	other := NewMachine(st, testCatalog(), rs)
	state, err := other.State(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, AwaitingConfirmation, state)

	res, err := other.Confirm(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, Confirmed, res.Outcome)
	assert.False(t, m.Active(ctx, 9))
}
