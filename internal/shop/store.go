package shop

import "context"

// Store is the persistence contract. Every mutation is atomic per user and
// every failure of the backend is reported as ErrStorage.
type Store interface {
	EnsureUser(ctx context.Context, uid UserID) error
	// AdjustStars upserts the user and adds delta, returning the new balance. No lower bound.
	AdjustStars(ctx context.Context, uid UserID, delta int64) (int64, error)
	// Stars returns 0 for users that were never seen.
	Stars(ctx context.Context, uid UserID) (int64, error)

	AddToCart(ctx context.Context, uid UserID, productKey string, qty int) error
	// RemoveFromCart decrements the line and deletes it once the quantity drops to zero or below.
	RemoveFromCart(ctx context.Context, uid UserID, productKey string, qty int) error
	Cart(ctx context.Context, uid UserID) ([]CartLine, error)
	ClearCart(ctx context.Context, uid UserID) error

	// CreateOrder inserts the order and clears the user's cart in one transaction.
	CreateOrder(ctx context.Context, o NewOrder) (int64, error)
	// PlaceOrder re-checks the balance, debits it, inserts the order and clears the cart
	// in one transaction. It returns ErrInsufficientFunds without mutating anything.
	PlaceOrder(ctx context.Context, o NewOrder) (Order, error)
	// Orders returns the user's orders newest first.
	Orders(ctx context.Context, uid UserID) ([]Order, error)

	ListUsers(ctx context.Context) ([]UserID, error)
	// ExportOrders returns every order ordered by id.
	ExportOrders(ctx context.Context) ([]Order, error)

	Ping(ctx context.Context) error
}
