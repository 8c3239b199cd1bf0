// Package memory implements shop.Store in process memory. Each user owns a
// mutex guarding its balance and cart; the order log has its own lock.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/m3rciful/starshop/internal/shop"
)

type account struct {
	mu         sync.Mutex
	registered bool
	stars      int64
	cart       map[string]int
}

// Store is an in-memory shop.Store.
type Store struct {
	accountsMu sync.RWMutex
	accounts   map[shop.UserID]*account

	ordersMu sync.RWMutex
	orders   []shop.Order
	nextID   int64

	now func() time.Time
}

var _ shop.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		accounts: make(map[shop.UserID]*account),
		now:      time.Now,
	}
}

func (s *Store) lookup(uid shop.UserID) *account {
	s.accountsMu.RLock()
	defer s.accountsMu.RUnlock()
	return s.accounts[uid]
}

func (s *Store) acquire(uid shop.UserID) *account {
	if a := s.lookup(uid); a != nil {
		return a
	}
	s.accountsMu.Lock()
	defer s.accountsMu.Unlock()
	a, ok := s.accounts[uid]
	if !ok {
		a = &account{cart: make(map[string]int)}
		s.accounts[uid] = a
	}
	return a
}

func (s *Store) EnsureUser(ctx context.Context, uid shop.UserID) error {
	if err := ctx.Err(); err != nil {
		return shop.StorageError("ensure_user", err)
	}
	a := s.acquire(uid)
	a.mu.Lock()
	a.registered = true
	a.mu.Unlock()
	return nil
}

func (s *Store) AdjustStars(ctx context.Context, uid shop.UserID, delta int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, shop.StorageError("adjust_stars", err)
	}
	a := s.acquire(uid)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.registered = true
	a.stars += delta
	return a.stars, nil
}

func (s *Store) Stars(ctx context.Context, uid shop.UserID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, shop.StorageError("get_stars", err)
	}
	a := s.lookup(uid)
	if a == nil {
		return 0, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stars, nil
}

func (s *Store) AddToCart(ctx context.Context, uid shop.UserID, productKey string, qty int) error {
	if err := ctx.Err(); err != nil {
		return shop.StorageError("add_to_cart", err)
	}
	a := s.acquire(uid)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cart[productKey] += qty
	if a.cart[productKey] <= 0 {
		delete(a.cart, productKey)
	}
	return nil
}

func (s *Store) RemoveFromCart(ctx context.Context, uid shop.UserID, productKey string, qty int) error {
	if err := ctx.Err(); err != nil {
		return shop.StorageError("remove_from_cart", err)
	}
	a := s.lookup(uid)
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	q, ok := a.cart[productKey]
	if !ok {
		return nil
	}
	if q-qty <= 0 {
		delete(a.cart, productKey)
		return nil
	}
	a.cart[productKey] = q - qty
	return nil
}

func (s *Store) Cart(ctx context.Context, uid shop.UserID) ([]shop.CartLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, shop.StorageError("get_cart", err)
	}
	a := s.lookup(uid)
	if a == nil {
		return nil, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return snapshotCart(a.cart), nil
}

func snapshotCart(cart map[string]int) []shop.CartLine {
	lines := make([]shop.CartLine, 0, len(cart))
	for k, q := range cart {
		lines = append(lines, shop.CartLine{ProductKey: k, Quantity: q})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductKey < lines[j].ProductKey })
	return lines
}

func (s *Store) ClearCart(ctx context.Context, uid shop.UserID) error {
	if err := ctx.Err(); err != nil {
		return shop.StorageError("clear_cart", err)
	}
	a := s.lookup(uid)
	if a == nil {
		return nil
	}
	a.mu.Lock()
	clear(a.cart)
	a.mu.Unlock()
	return nil
}

func (s *Store) CreateOrder(ctx context.Context, o shop.NewOrder) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, shop.StorageError("create_order", err)
	}
	a := s.acquire(o.UserID)
	a.mu.Lock()
	defer a.mu.Unlock()
	order := s.appendOrder(o)
	clear(a.cart)
	return order.ID, nil
}

func (s *Store) PlaceOrder(ctx context.Context, o shop.NewOrder) (shop.Order, error) {
	if err := ctx.Err(); err != nil {
		return shop.Order{}, shop.StorageError("place_order", err)
	}
	a := s.acquire(o.UserID)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stars < o.Total {
		return shop.Order{}, shop.ErrInsufficientFunds
	}
	a.registered = true
	a.stars -= o.Total
	order := s.appendOrder(o)
	clear(a.cart)
	return order, nil
}

func (s *Store) appendOrder(o shop.NewOrder) shop.Order {
	s.ordersMu.Lock()
	defer s.ordersMu.Unlock()
	s.nextID++
	order := shop.Order{
		ID:            s.nextID,
		UserID:        o.UserID,
		Items:         append([]shop.OrderItem(nil), o.Items...),
		Total:         o.Total,
		RecipientName: o.RecipientName,
		Address:       o.Address,
		CreatedAt:     s.now().UTC().Truncate(time.Microsecond),
	}
	s.orders = append(s.orders, order)
	return order
}

func (s *Store) Orders(ctx context.Context, uid shop.UserID) ([]shop.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, shop.StorageError("get_orders", err)
	}
	s.ordersMu.RLock()
	defer s.ordersMu.RUnlock()
	var out []shop.Order
	for i := len(s.orders) - 1; i >= 0; i-- {
		if s.orders[i].UserID == uid {
			out = append(out, s.orders[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]shop.UserID, error) {
	if err := ctx.Err(); err != nil {
		return nil, shop.StorageError("list_users", err)
	}
	s.accountsMu.RLock()
	candidates := make(map[shop.UserID]*account, len(s.accounts))
	for id, a := range s.accounts {
		candidates[id] = a
	}
	s.accountsMu.RUnlock()

	ids := make([]shop.UserID, 0, len(candidates))
	for id, a := range candidates {
		a.mu.Lock()
		ok := a.registered
		a.mu.Unlock()
		if ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *Store) ExportOrders(ctx context.Context) ([]shop.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, shop.StorageError("export_orders", err)
	}
	s.ordersMu.RLock()
	defer s.ordersMu.RUnlock()
	return append([]shop.Order(nil), s.orders...), nil
}

func (s *Store) Ping(ctx context.Context) error {
	return shop.StorageError("ping", ctx.Err())
}
