// Package postgres implements shop.Store on PostgreSQL through sqlx.
//
// Per-user atomicity comes from single-statement upserts and, where a
// read-modify-write spans statements, from a transaction holding the row lock.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/starshop/core/logger"
	"github.com/m3rciful/starshop/internal/shop"
)

const component = "store"

// Store is a PostgreSQL-backed shop.Store.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ shop.Store = (*Store)(nil)

// New wraps an open sqlx handle; the schema is expected to be migrated already.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now}
}

type orderRow struct {
	ID            int64  `db:"id"`
	UserID        int64  `db:"user_id"`
	Items         string `db:"items"`
	Total         int64  `db:"total"`
	RecipientName string `db:"fio"`
	Address       string `db:"address"`
	CreatedAt     string `db:"created_at"`
}

func (r orderRow) toOrder() (shop.Order, error) {
	items, err := shop.DecodeItems(r.Items)
	if err != nil {
		return shop.Order{}, fmt.Errorf("decode items of order %d: %w", r.ID, err)
	}
	createdAt, err := shop.ParseTimestamp(r.CreatedAt)
	if err != nil {
		return shop.Order{}, fmt.Errorf("parse created_at of order %d: %w", r.ID, err)
	}
	return shop.Order{
		ID:            r.ID,
		UserID:        shop.UserID(r.UserID),
		Items:         items,
		Total:         r.Total,
		RecipientName: r.RecipientName,
		Address:       r.Address,
		CreatedAt:     createdAt,
	}, nil
}

func (s *Store) fail(ctx context.Context, op string, err error) error {
	logger.Error(ctx, component, "query.fail",
		slog.String("status", "fail"),
		slog.String("op", op),
		slog.String("err", err.Error()),
	)
	return shop.StorageError(op, err)
}

// withinTx runs fn in a transaction, committing on success and rolling back
// on error or panic.
func (s *Store) withinTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(tx)
}

const (
	ensureUserSQL = `INSERT INTO users (user_id, stars) VALUES ($1, 0) ON CONFLICT (user_id) DO NOTHING`
	adjustSQL     = `INSERT INTO users (user_id, stars) VALUES ($1, $2)
                     ON CONFLICT (user_id) DO UPDATE SET stars = users.stars + EXCLUDED.stars
                     RETURNING stars`
	starsSQL     = `SELECT stars FROM users WHERE user_id = $1`
	lockStarsSQL = `SELECT stars FROM users WHERE user_id = $1 FOR UPDATE`
	debitSQL     = `UPDATE users SET stars = stars - $2 WHERE user_id = $1`

	addCartSQL = `INSERT INTO cart (user_id, drug_key, quantity) VALUES ($1, $2, $3)
                  ON CONFLICT (user_id, drug_key) DO UPDATE SET quantity = cart.quantity + EXCLUDED.quantity`
	decCartSQL   = `UPDATE cart SET quantity = quantity - $3 WHERE user_id = $1 AND drug_key = $2`
	pruneCartSQL = `DELETE FROM cart WHERE user_id = $1 AND drug_key = $2 AND quantity <= 0`
	cartSQL      = `SELECT drug_key, quantity FROM cart WHERE user_id = $1 ORDER BY drug_key`
	clearCartSQL = `DELETE FROM cart WHERE user_id = $1`

	insertOrderSQL = `INSERT INTO orders (user_id, items, total, fio, address, created_at)
                      VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	ordersSQL = `SELECT id, user_id, items, total, fio, address, created_at
                 FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	exportSQL = `SELECT id, user_id, items, total, fio, address, created_at FROM orders ORDER BY id`
	usersSQL  = `SELECT user_id FROM users ORDER BY user_id`
)

func (s *Store) EnsureUser(ctx context.Context, uid shop.UserID) error {
	if _, err := s.db.ExecContext(ctx, ensureUserSQL, int64(uid)); err != nil {
		return s.fail(ctx, "ensure_user", err)
	}
	return nil
}

func (s *Store) AdjustStars(ctx context.Context, uid shop.UserID, delta int64) (int64, error) {
	var stars int64
	if err := s.db.QueryRowxContext(ctx, adjustSQL, int64(uid), delta).Scan(&stars); err != nil {
		return 0, s.fail(ctx, "adjust_stars", err)
	}
	logger.Info(ctx, component, "stars.adjusted",
		slog.String("status", "ok"),
		slog.Int64("user_id", int64(uid)),
		slog.Int64("delta", delta),
		slog.Int64("stars", stars),
	)
	return stars, nil
}

func (s *Store) Stars(ctx context.Context, uid shop.UserID) (int64, error) {
	var stars int64
	err := s.db.GetContext(ctx, &stars, starsSQL, int64(uid))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, s.fail(ctx, "get_stars", err)
	}
	return stars, nil
}

func (s *Store) AddToCart(ctx context.Context, uid shop.UserID, productKey string, qty int) error {
	err := s.withinTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, addCartSQL, int64(uid), productKey, qty); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, pruneCartSQL, int64(uid), productKey)
		return err
	})
	if err != nil {
		return s.fail(ctx, "add_to_cart", err)
	}
	return nil
}

func (s *Store) RemoveFromCart(ctx context.Context, uid shop.UserID, productKey string, qty int) error {
	err := s.withinTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, decCartSQL, int64(uid), productKey, qty); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, pruneCartSQL, int64(uid), productKey)
		return err
	})
	if err != nil {
		return s.fail(ctx, "remove_from_cart", err)
	}
	return nil
}

func (s *Store) Cart(ctx context.Context, uid shop.UserID) ([]shop.CartLine, error) {
	var lines []shop.CartLine
	if err := s.db.SelectContext(ctx, &lines, cartSQL, int64(uid)); err != nil {
		return nil, s.fail(ctx, "get_cart", err)
	}
	return lines, nil
}

func (s *Store) ClearCart(ctx context.Context, uid shop.UserID) error {
	if _, err := s.db.ExecContext(ctx, clearCartSQL, int64(uid)); err != nil {
		return s.fail(ctx, "clear_cart", err)
	}
	return nil
}

func (s *Store) insertOrder(ctx context.Context, tx *sqlx.Tx, o shop.NewOrder) (shop.Order, error) {
	items, err := shop.EncodeItems(o.Items)
	if err != nil {
		return shop.Order{}, fmt.Errorf("encode items: %w", err)
	}
	order := shop.Order{
		UserID:        o.UserID,
		Items:         o.Items,
		Total:         o.Total,
		RecipientName: o.RecipientName,
		Address:       o.Address,
		CreatedAt:     s.now().UTC().Truncate(time.Microsecond),
	}
	err = tx.QueryRowxContext(ctx, insertOrderSQL,
		int64(o.UserID), items, o.Total, o.RecipientName, o.Address, order.CreatedAtText(),
	).Scan(&order.ID)
	if err != nil {
		return shop.Order{}, err
	}
	if _, err := tx.ExecContext(ctx, clearCartSQL, int64(o.UserID)); err != nil {
		return shop.Order{}, err
	}
	return order, nil
}

func (s *Store) CreateOrder(ctx context.Context, o shop.NewOrder) (int64, error) {
	var order shop.Order
	err := s.withinTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		order, err = s.insertOrder(ctx, tx, o)
		return err
	})
	if err != nil {
		return 0, s.fail(ctx, "create_order", err)
	}
	return order.ID, nil
}

func (s *Store) PlaceOrder(ctx context.Context, o shop.NewOrder) (shop.Order, error) {
	var order shop.Order
	err := s.withinTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, ensureUserSQL, int64(o.UserID)); err != nil {
			return err
		}
		var stars int64
		if err := tx.QueryRowxContext(ctx, lockStarsSQL, int64(o.UserID)).Scan(&stars); err != nil {
			return err
		}
		if stars < o.Total {
			return shop.ErrInsufficientFunds
		}
		if _, err := tx.ExecContext(ctx, debitSQL, int64(o.UserID), o.Total); err != nil {
			return err
		}
		var err error
		order, err = s.insertOrder(ctx, tx, o)
		return err
	})
	if errors.Is(err, shop.ErrInsufficientFunds) {
		return shop.Order{}, err
	}
	if err != nil {
		return shop.Order{}, s.fail(ctx, "place_order", err)
	}
	logger.Info(ctx, component, "order.placed",
		slog.String("status", "ok"),
		slog.Int64("order_id", order.ID),
		slog.Int64("user_id", int64(o.UserID)),
		slog.Int64("total", o.Total),
	)
	return order, nil
}

func (s *Store) selectOrders(ctx context.Context, op, query string, args ...any) ([]shop.Order, error) {
	var rows []orderRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, s.fail(ctx, op, err)
	}
	orders := make([]shop.Order, 0, len(rows))
	for _, r := range rows {
		o, err := r.toOrder()
		if err != nil {
			return nil, s.fail(ctx, op, err)
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (s *Store) Orders(ctx context.Context, uid shop.UserID) ([]shop.Order, error) {
	return s.selectOrders(ctx, "get_orders", ordersSQL, int64(uid))
}

func (s *Store) ExportOrders(ctx context.Context) ([]shop.Order, error) {
	return s.selectOrders(ctx, "export_orders", exportSQL)
}

func (s *Store) ListUsers(ctx context.Context) ([]shop.UserID, error) {
	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, usersSQL); err != nil {
		return nil, s.fail(ctx, "list_users", err)
	}
	out := make([]shop.UserID, 0, len(ids))
	for _, id := range ids {
		out = append(out, shop.UserID(id))
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return s.fail(ctx, "ping", err)
	}
	return nil
}
