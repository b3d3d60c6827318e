// Package cache implements the look-aside response cache: a service over
// a backend Store capability interface, with a durable (redis) store
// preferred and a one-way degrade to the bounded in-memory fallback on
// the first transport error.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/eduforge/tutorgw/internal/domain"
	"github.com/eduforge/tutorgw/internal/observability"
)

const (
	// keyNamespace prefixes every key so entries never collide with
	// unrelated data sharing the durable store.
	keyNamespace = "eduforge:answer:"

	// DefaultTTL is how long cached answers stay valid.
	DefaultTTL = 7 * 24 * time.Hour

	// minAnswerLength gates writes: shorter answers are not worth caching.
	minAnswerLength = 30
)

// Store is the backend capability interface. Two implementations exist
// (redis, bounded memory); call sites never branch on backend type.
type Store interface {
	// Get returns the stored value or domain.ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with an expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Clear removes a key.
	Clear(ctx context.Context, key string) error

	// Close releases the store.
	Close() error
}

// Service implements domain.ResponseCache.
type Service struct {
	durable  Store // nil when no durable store is configured
	fallback Store
	ttl      time.Duration
	degraded atomic.Bool
}

// NewService creates a cache service. durable may be nil, in which case
// the fallback store serves everything from the start.
func NewService(durable, fallback Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		durable:  durable,
		fallback: fallback,
		ttl:      ttl,
	}
}

// Get retrieves a cached entry, or domain.ErrCacheMiss.
func (s *Service) Get(ctx context.Context, fingerprint string) (*domain.CacheEntry, error) {
	key := keyNamespace + fingerprint

	data, err := s.store().Get(ctx, key)
	if err != nil && !errors.Is(err, domain.ErrCacheMiss) {
		if !s.degrade(ctx, err) {
			return nil, fmt.Errorf("cache get failed: %w", err)
		}
		data, err = s.fallback.Get(ctx, key)
	}
	if err != nil {
		if errors.Is(err, domain.ErrCacheMiss) {
			return nil, domain.ErrCacheMiss
		}
		return nil, fmt.Errorf("cache get failed: %w", err)
	}

	var entry domain.CacheEntry
	if unmarshalErr := json.Unmarshal(data, &entry); unmarshalErr != nil {
		// A corrupt entry is as good as a miss.
		return nil, domain.ErrCacheMiss
	}
	return &entry, nil
}

// Set stores a completed answer. No-ops when noCache is set or the
// answer is shorter than the caching threshold.
func (s *Service) Set(ctx context.Context, fingerprint, answer string, usage *domain.Usage, noCache bool) error {
	if noCache || len(answer) < minAnswerLength {
		return nil
	}

	entry := domain.CacheEntry{
		Answer:   answer,
		Usage:    usage,
		CachedAt: time.Now(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	key := keyNamespace + fingerprint
	if setErr := s.store().Set(ctx, key, data, s.ttl); setErr != nil {
		if !s.degrade(ctx, setErr) {
			return fmt.Errorf("cache set failed: %w", setErr)
		}
		if fbErr := s.fallback.Set(ctx, key, data, s.ttl); fbErr != nil {
			return fmt.Errorf("cache set failed: %w", fbErr)
		}
	}
	return nil
}

// Clear removes a single entry.
func (s *Service) Clear(ctx context.Context, fingerprint string) error {
	key := keyNamespace + fingerprint
	if err := s.store().Clear(ctx, key); err != nil {
		if !s.degrade(ctx, err) {
			return fmt.Errorf("cache clear failed: %w", err)
		}
		return s.fallback.Clear(ctx, key)
	}
	return nil
}

// Close releases both stores.
func (s *Service) Close() error {
	var errs []error
	if s.durable != nil {
		if err := s.durable.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.fallback.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// store picks the active backend. Selection is made once per process
// lifetime: after the first durable transport error, everything goes to
// the fallback.
func (s *Service) store() Store {
	if s.durable == nil || s.degraded.Load() {
		return s.fallback
	}
	return s.durable
}

// degrade flips the one-way circuit breaker. Returns false when there is
// nothing to degrade to (already on the fallback).
func (s *Service) degrade(ctx context.Context, cause error) bool {
	if s.durable == nil || s.degraded.Load() {
		return false
	}
	if s.degraded.CompareAndSwap(false, true) {
		observability.FromContext(ctx).Warn(
			"durable cache store failed, degrading to in-memory store for process lifetime",
			observability.Error(cause))
	}
	return true
}
