package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/eduforge/tutorgw/internal/domain"
)

// Registry implements the domain.ProviderRegistry interface. Providers
// are keyed by canonical lowercase name; one registered name may be
// marked as the default.
type Registry struct {
	mu          sync.RWMutex
	providers   map[string]domain.Provider
	defaultName string
}

// NewRegistry creates a new provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]domain.Provider),
	}
}

// Register adds a provider to the registry under its canonical lowercase
// name. The first registered provider becomes the default until
// SetDefault says otherwise.
func (r *Registry) Register(_ context.Context, provider domain.Provider) error {
	if provider == nil {
		return errors.New("provider cannot be nil")
	}

	name := strings.ToLower(strings.TrimSpace(provider.Name()))
	if name == "" {
		return errors.New("provider name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; exists {
		return fmt.Errorf("provider %s already registered", name)
	}

	r.providers[name] = provider
	if r.defaultName == "" {
		r.defaultName = name
	}
	return nil
}

// SetDefault marks a registered provider as the default.
func (r *Registry) SetDefault(name string) error {
	name = strings.ToLower(strings.TrimSpace(name))

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[name]; !exists {
		return fmt.Errorf("provider %s not registered", name)
	}
	r.defaultName = name
	return nil
}

// Resolve retrieves a provider by name, case-insensitively.
func (r *Registry) Resolve(_ context.Context, providerName string) (domain.Provider, error) {
	name := strings.ToLower(strings.TrimSpace(providerName))
	if name == "" {
		return nil, errors.New("provider name cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[name]
	if !exists {
		return nil, fmt.Errorf("provider %s not found", name)
	}
	return provider, nil
}

// Default returns the configured default provider, if it is still
// registered.
func (r *Registry) Default(_ context.Context) (domain.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.defaultName == "" {
		return nil, errors.New("no default provider configured")
	}
	provider, exists := r.providers[r.defaultName]
	if !exists {
		return nil, fmt.Errorf("default provider %s not registered", r.defaultName)
	}
	return provider, nil
}

// List returns all available provider names, sorted.
func (r *Registry) List(_ context.Context) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
