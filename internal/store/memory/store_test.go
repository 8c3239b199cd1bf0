package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/starshop/internal/shop"
)

func TestUnknownUserDefaults(t *testing.T) {
	s := New()
	ctx := context.Background()

	stars, err := s.Stars(ctx, 404)
	require.NoError(t, err)
	assert.Zero(t, stars)

	orders, err := s.Orders(ctx, 404)
	require.NoError(t, err)
	assert.Empty(t, orders)

	cart, err := s.Cart(ctx, 404)
	require.NoError(t, err)
	assert.Empty(t, cart)
}

func TestCartQuantityFollowsSignedDeltas(t *testing.T) {
	s := New()
	ctx := context.Background()
	const uid shop.UserID = 1

	steps := []struct {
		add  bool
		qty  int
		want int // 0 means the line must be absent
	}{
		{true, 1, 1},
		{true, 2, 3},
		{false, 1, 2},
		{false, 2, 0},
		{false, 1, 0},
		{true, 1, 1},
		{false, 5, 0},
	}
	for i, st := range steps {
		var err error
		if st.add {
			err = s.AddToCart(ctx, uid, "grazax", st.qty)
		} else {
			err = s.RemoveFromCart(ctx, uid, "grazax", st.qty)
		}
		require.NoError(t, err, "step %d", i)

		cart, err := s.Cart(ctx, uid)
		require.NoError(t, err)
		if st.want == 0 {
			assert.Empty(t, cart, "step %d", i)
			continue
		}
		require.Len(t, cart, 1, "step %d", i)
		assert.Equal(t, st.want, cart[0].Quantity, "step %d", i)
	}
}

func TestCartIsSortedByKey(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.AddToCart(ctx, 1, "ragvizax", 1))
	require.NoError(t, s.AddToCart(ctx, 1, "grazax", 1))

	cart, err := s.Cart(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []shop.CartLine{{ProductKey: "grazax", Quantity: 1}, {ProductKey: "ragvizax", Quantity: 1}}, cart)
}

func TestConcurrentAddsKeepEveryIncrement(t *testing.T) {
	s := New()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.AddToCart(ctx, 9, "grazax", 1)
			_, _ = s.AdjustStars(ctx, 9, 10)
		}()
	}
	wg.Wait()

	cart, err := s.Cart(ctx, 9)
	require.NoError(t, err)
	require.Len(t, cart, 1)
	assert.Equal(t, 100, cart[0].Quantity)

	stars, err := s.Stars(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), stars)
}

func TestAdjustStarsRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.AdjustStars(ctx, 5, 700)
	require.NoError(t, err)

	after, err := s.AdjustStars(ctx, 5, -22600)
	require.NoError(t, err)
	assert.Equal(t, int64(700-22600), after)

	restored, err := s.AdjustStars(ctx, 5, 22600)
	require.NoError(t, err)
	assert.Equal(t, int64(700), restored)
}

func TestCreateOrderClearsCart(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.AddToCart(ctx, 3, "ragvizax", 2))

	cart, err := s.Cart(ctx, 3)
	require.NoError(t, err)
	id, err := s.CreateOrder(ctx, shop.NewOrder{
		UserID: 3, Items: shop.ItemsFromCart(cart), Total: 22600,
		RecipientName: "Ivan", Address: "Moscow",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	cart, err = s.Cart(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, cart)

	orders, err := s.Orders(ctx, 3)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(22600), orders[0].Total)
	assert.Equal(t, []shop.OrderItem{{ProductKey: "ragvizax", Quantity: 2}}, orders[0].Items)
}

func TestPlaceOrderInsufficientFundsMutatesNothing(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.AdjustStars(ctx, 1, 20000)
	require.NoError(t, err)
	require.NoError(t, s.AddToCart(ctx, 1, "ragvizax", 2))

	_, err = s.PlaceOrder(ctx, shop.NewOrder{UserID: 1, Items: []shop.OrderItem{{ProductKey: "ragvizax", Quantity: 2}}, Total: 22600})
	require.True(t, errors.Is(err, shop.ErrInsufficientFunds))

	stars, _ := s.Stars(ctx, 1)
	assert.Equal(t, int64(20000), stars)
	cart, _ := s.Cart(ctx, 1)
	assert.Len(t, cart, 1)
	orders, _ := s.Orders(ctx, 1)
	assert.Empty(t, orders)
}

func TestPlaceOrderDebitsAndClears(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, err := s.AdjustStars(ctx, 1, 30000)
	require.NoError(t, err)
	require.NoError(t, s.AddToCart(ctx, 1, "ragvizax", 2))

	order, err := s.PlaceOrder(ctx, shop.NewOrder{UserID: 1, Items: []shop.OrderItem{{ProductKey: "ragvizax", Quantity: 2}}, Total: 22600})
	require.NoError(t, err)
	assert.Equal(t, int64(22600), order.Total)

	stars, _ := s.Stars(ctx, 1)
	assert.Equal(t, int64(7400), stars)
	cart, _ := s.Cart(ctx, 1)
	assert.Empty(t, cart)
}

func TestOrdersNewestFirstAndExportByID(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	for i := 0; i < 3; i++ {
		_, err := s.CreateOrder(ctx, shop.NewOrder{UserID: 1, Total: int64(i + 1)})
		require.NoError(t, err)
	}
	_, err := s.CreateOrder(ctx, shop.NewOrder{UserID: 2, Total: 99})
	require.NoError(t, err)

	orders, err := s.Orders(ctx, 1)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, []int64{3, 2, 1}, []int64{orders[0].ID, orders[1].ID, orders[2].ID})

	all, err := s.ExportOrders(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, int64(1), all[0].ID)
	assert.Equal(t, int64(4), all[3].ID)
}

func TestListUsersOnlyRegistered(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.EnsureUser(ctx, 20))
	require.NoError(t, s.EnsureUser(ctx, 10))
	require.NoError(t, s.EnsureUser(ctx, 10))
	_, err := s.AdjustStars(ctx, 30, 1)
	require.NoError(t, err)
	require.NoError(t, s.AddToCart(ctx, 40, "grazax", 1))

	ids, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []shop.UserID{10, 20, 30}, ids)
}

func TestCancelledContextIsStorageError(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Stars(ctx, 1)
	assert.True(t, errors.Is(err, shop.ErrStorage))
	assert.True(t, errors.Is(err, context.Canceled))
}
