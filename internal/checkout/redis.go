package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/starshop/internal/shop"
)

const defaultKeyPrefix = "starshop:checkout:"

// RedisSessions stores sessions as JSON values, one key per user.
type RedisSessions struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ SessionStore = (*RedisSessions)(nil)

// NewRedisSessions uses client for storage. A zero ttl keeps sessions until
// they are confirmed or cancelled.
func NewRedisSessions(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisSessions {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisSessions{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisSessions) key(uid shop.UserID) string {
	return r.prefix + strconv.FormatInt(int64(uid), 10)
}

func (r *RedisSessions) Get(ctx context.Context, uid shop.UserID) (Session, bool, error) {
	raw, err := r.client.Get(ctx, r.key(uid)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, shop.StorageError("get_session", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, false, shop.StorageError("get_session", fmt.Errorf("decode session: %w", err))
	}
	return s, true, nil
}

func (r *RedisSessions) Put(ctx context.Context, uid shop.UserID, s Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return shop.StorageError("put_session", err)
	}
	if err := r.client.Set(ctx, r.key(uid), raw, r.ttl).Err(); err != nil {
		return shop.StorageError("put_session", err)
	}
	return nil
}

func (r *RedisSessions) Delete(ctx context.Context, uid shop.UserID) error {
	if err := r.client.Del(ctx, r.key(uid)).Err(); err != nil {
		return shop.StorageError("delete_session", err)
	}
	return nil
}

// Ping checks connectivity to the server.
func (r *RedisSessions) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return shop.StorageError("ping_sessions", err)
	}
	return nil
}
