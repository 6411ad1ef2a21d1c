// Package idempotency guards mutating endpoints against blind retries.
// Callers reserve a client-supplied key before acting; a second reservation
// of a live key means the same request is already in flight or done.
package idempotency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"rumbo/pkg/platform/sentinel"
)

// Store reserves idempotency keys for a bounded window.
type Store interface {
	// Reserve claims the key. It returns sentinel.ErrAlreadyUsed when the
	// key was already claimed inside its TTL window.
	Reserve(ctx context.Context, key string, ttl time.Duration) error
	// Release frees a key early, used when the guarded operation failed
	// before reaching a decision and a retry should be allowed.
	Release(ctx context.Context, key string) error
}

// Redis implements Store on a shared Redis instance so replicas agree on
// which keys are taken.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, prefix: "idem:"}
}

func (s *Redis) Reserve(ctx context.Context, key string, ttl time.Duration) error {
	ok, err := s.client.SetNX(ctx, s.prefix+key, "1", ttl).Result()
	if err != nil {
		return fmt.Errorf("reserving idempotency key: %w", err)
	}
	if !ok {
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (s *Redis) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("releasing idempotency key: %w", err)
	}
	return nil
}

// Memory implements Store in process memory for tests and single-node runs.
type Memory struct {
	mu   sync.Mutex
	keys map[string]time.Time
	now  func() time.Time
}

func NewMemory() *Memory {
	return &Memory{keys: make(map[string]time.Time), now: time.Now}
}

func (s *Memory) Reserve(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expiry, ok := s.keys[key]; ok && now.Before(expiry) {
		return sentinel.ErrAlreadyUsed
	}
	s.keys[key] = now.Add(ttl)
	return nil
}

func (s *Memory) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}
