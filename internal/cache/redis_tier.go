package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisTier is a shared second cache level holding JSON-encoded values.
type RedisTier[V any] struct {
	client redis.Cmdable
	prefix string
}

// NewRedisTier stores keys under prefix (e.g. "scout:cache:places:").
func NewRedisTier[V any](client redis.Cmdable, prefix string) *RedisTier[V] {
	return &RedisTier[V]{client: client, prefix: prefix}
}

// Get returns the value and its remaining lifetime. A missing key is
// (zero, 0, false, nil).
func (r *RedisTier[V]) Get(ctx context.Context, key string) (V, time.Duration, bool, error) {
	var zero V
	var get *redis.StringCmd
	var pttl *redis.DurationCmd
	_, err := r.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		get = p.Get(ctx, r.prefix+key)
		pttl = p.PTTL(ctx, r.prefix+key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return zero, 0, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	raw, err := get.Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, 0, false, nil
	}
	if err != nil {
		return zero, 0, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var v V
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, 0, false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	ttl := pttl.Val()
	if ttl <= 0 {
		// No expiry set or already gone between the two commands.
		return zero, 0, false, nil
	}
	return v, ttl, true, nil
}

// Set stores value with ttl.
func (r *RedisTier[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cached %s: %w", key, err)
	}
	if err := r.client.Set(ctx, r.prefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Tiered reads the local cache first, then Redis, promoting Redis hits
// locally for their remaining lifetime. Redis errors are logged and treated
// as misses; a nil remote makes it local-only.
type Tiered[V any] struct {
	local  *Cache[V]
	remote *RedisTier[V]
	logger *zap.Logger
}

// NewTiered composes local and remote. remote may be nil.
func NewTiered[V any](local *Cache[V], remote *RedisTier[V], logger *zap.Logger) *Tiered[V] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tiered[V]{local: local, remote: remote, logger: logger.Named("cache").With(zap.String("cache", local.Name()))}
}

// Local exposes the in-process level, for stats.
func (t *Tiered[V]) Local() *Cache[V] { return t.local }

// Get looks key up in both levels.
func (t *Tiered[V]) Get(ctx context.Context, key string) (V, bool) {
	if v, ok := t.local.Get(key); ok {
		return v, true
	}
	if t.remote == nil {
		var zero V
		return zero, false
	}
	v, ttl, ok, err := t.remote.Get(ctx, key)
	if err != nil {
		t.logger.Warn("redis tier read failed", zap.Error(err))
		return v, false
	}
	if ok {
		t.local.Set(key, v, min(ttl, t.local.TTL()))
	}
	return v, ok
}

// Set writes both levels. ttl <= 0 uses the local default.
func (t *Tiered[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = t.local.TTL()
	}
	t.local.Set(key, value, ttl)
	if t.remote == nil {
		return
	}
	if err := t.remote.Set(ctx, key, value, ttl); err != nil {
		t.logger.Warn("redis tier write failed", zap.Error(err))
	}
}

// Delete removes key from both levels.
func (t *Tiered[V]) Delete(ctx context.Context, key string) {
	t.local.Delete(key)
	if t.remote == nil {
		return
	}
	if err := t.remote.client.Del(ctx, t.remote.prefix+key).Err(); err != nil {
		t.logger.Warn("redis tier delete failed", zap.Error(err))
	}
}
