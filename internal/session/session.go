// Package session deduplicates inbound interaction events. Each update id
// is recorded once with a TTL; a second sighting within the window is a
// replay and gets dropped by the caller.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is the abstraction over different backends.
type Store interface {
	// MarkSeen records an id and reports whether this is its first sighting.
	MarkSeen(ctx context.Context, id string) (bool, error)
}

// Memory is a mutex-guarded map store for dev/testing and single-instance
// deployments.
type Memory struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

// NewMemory creates an in-memory store.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Memory{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// MarkSeen records an id, expiring stale entries as it goes.
func (m *Memory) MarkSeen(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, exp := range m.seen {
		if exp.Before(now) {
			delete(m.seen, k)
		}
	}
	if _, ok := m.seen[id]; ok {
		return false, nil
	}
	m.seen[id] = now.Add(m.ttl)
	return true, nil
}

// RedisStore shares sightings across instances via SETNX with expiry.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "classping:seen:"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

// MarkSeen records an id atomically; the first writer wins.
func (s *RedisStore) MarkSeen(ctx context.Context, id string) (bool, error) {
	return s.client.SetNX(ctx, s.prefix+id, 1, s.ttl).Result()
}
