// Package memory provides a bounded in-memory cache store. It backs the
// cache when no durable store is configured and serves as the degrade
// target when the durable store fails.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/eduforge/tutorgw/internal/domain"
)

// DefaultMaxEntries bounds the store when no capacity is given.
const DefaultMaxEntries = 512

type entry struct {
	value     []byte
	storedAt  time.Time
	expiresAt time.Time
}

// Store is a bounded, expiring in-memory key/value store.
type Store struct {
	mu         sync.RWMutex
	entries    map[string]entry
	maxEntries int
	now        func() time.Time
}

// NewStore creates a store holding at most maxEntries values. Oldest
// entries are evicted under capacity pressure.
func NewStore(maxEntries int) *Store {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Store{
		entries:    make(map[string]entry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the stored value or domain.ErrCacheMiss. Expired entries
// are dropped lazily on read.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	e, exists := s.entries[key]
	s.mu.RUnlock()

	if !exists {
		return nil, domain.ErrCacheMiss
	}
	if s.now().After(e.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, domain.ErrCacheMiss
	}
	return e.value, nil
}

// Set stores a value, evicting the oldest entry when full.
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[key]; !exists && len(s.entries) >= s.maxEntries {
		s.evictOldestLocked()
	}

	now := s.now()
	s.entries[key] = entry{
		value:     value,
		storedAt:  now,
		expiresAt: now.Add(ttl),
	}
	return nil
}

// Clear removes a key.
func (s *Store) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// Len reports the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	first := true
	for key, e := range s.entries {
		if first || e.storedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = e.storedAt
			first = false
		}
	}
	if oldestKey != "" {
		delete(s.entries, oldestKey)
	}
}
