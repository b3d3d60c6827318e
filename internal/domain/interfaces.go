package domain

import "context"

// Provider represents any LLM provider.
type Provider interface {
	// Stream sends a completion request and returns a stream of chunks.
	// The returned channel is single-use: after a terminal chunk it is
	// closed and a fresh call must be issued to stream again.
	Stream(ctx context.Context, req *StreamRequest) (<-chan StreamChunk, error)

	// Name returns the provider identifier.
	Name() string

	// Identity returns the immutable provider identity.
	Identity() ProviderIdentity
}

// ProviderRegistry manages available providers.
type ProviderRegistry interface {
	// Register adds a provider to the registry.
	Register(ctx context.Context, provider Provider) error

	// Resolve retrieves a provider by name (case-insensitive).
	Resolve(ctx context.Context, providerName string) (Provider, error)

	// Default returns the configured default provider.
	Default(ctx context.Context) (Provider, error)

	// List returns all available provider names.
	List(ctx context.Context) []string
}

// ResponseCache is a look-aside cache for completed answers.
type ResponseCache interface {
	// Get retrieves a cached entry, or ErrCacheMiss.
	Get(ctx context.Context, fingerprint string) (*CacheEntry, error)

	// Set stores a completed answer. It is a no-op when noCache is set
	// or the answer is too short to be worth caching.
	Set(ctx context.Context, fingerprint, answer string, usage *Usage, noCache bool) error

	// Clear removes a single entry.
	Clear(ctx context.Context, fingerprint string) error

	// Close releases the backing store.
	Close() error
}

// Sanitizer is a pure text-to-text cleanup pass applied to every answer
// regardless of source. The production implementation (PII scrubbing)
// lives outside this module.
type Sanitizer func(string) string
