package session

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/model-booking/internal/clock"
)

// RedisRevocations stores revoked credential ids as keys that expire when
// the credential itself would have.
type RedisRevocations struct {
	rdb    *redis.Client
	prefix string
	clock  clock.Clock
}

func NewRedisRevocations(rdb *redis.Client, prefix string, clk clock.Clock) *RedisRevocations {
	if prefix == "" {
		prefix = "revoked"
	}
	return &RedisRevocations{rdb: rdb, prefix: prefix, clock: clk}
}

func (r *RedisRevocations) key(id string) string { return r.prefix + ":" + id }

func (r *RedisRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.rdb.Exists(ctx, r.key(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisRevocations) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(r.clock.Now())
	if ttl < time.Second {
		ttl = time.Second
	}
	return r.rdb.Set(ctx, r.key(tokenID), "1", ttl).Err()
}

// MemoryRevocations is the single-process fallback used when Redis is not
// configured, and in tests.
type MemoryRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	clock   clock.Clock
}

func NewMemoryRevocations(clk clock.Clock) *MemoryRevocations {
	return &MemoryRevocations{revoked: make(map[string]time.Time), clock: clk}
}

func (m *MemoryRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.revoked[tokenID]
	if !ok {
		return false, nil
	}
	if !m.clock.Now().Before(until) {
		delete(m.revoked, tokenID)
		return false, nil
	}
	return true, nil
}

func (m *MemoryRevocations) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	m.mu.Lock()
	m.revoked[tokenID] = until
	m.mu.Unlock()
	return nil
}
