package cache

import (
	"context"
	"strings"
	"time"
)

// Store is a byte-oriented key/value backend with per-entry TTL
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// DeleteMatching removes keys under prefix for which match returns true
	DeleteMatching(ctx context.Context, prefix string, match func(key string) bool) (int, error)
	Close() error
}

// MemoryStore keeps entries in process memory
type MemoryStore struct {
	entries *TTL[[]byte]
}

// NewMemoryStore creates an in-memory store; ttl is the sweep interval and default lifetime
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{entries: NewTTL[[]byte](ttl)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.entries.Get(key)
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.entries.SetWithTTL(key, append([]byte(nil), value...), ttl)
	return nil
}

func (s *MemoryStore) DeleteMatching(_ context.Context, prefix string, match func(key string) bool) (int, error) {
	return s.entries.DeleteFunc(func(key string) bool {
		return strings.HasPrefix(key, prefix) && (match == nil || match(key))
	}), nil
}

func (s *MemoryStore) Close() error {
	return nil
}
