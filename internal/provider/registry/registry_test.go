package registry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eduforge/tutorgw/internal/domain"
	"github.com/eduforge/tutorgw/internal/provider/registry"
)

// stubProvider is a minimal Provider implementation for registry tests.
type stubProvider struct {
	name string
}

func (s *stubProvider) Stream(_ context.Context, _ *domain.StreamRequest) (<-chan domain.StreamChunk, error) {
	ch := make(chan domain.StreamChunk)
	close(ch)
	return ch, nil
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Identity() domain.ProviderIdentity {
	return domain.ProviderIdentity{Name: s.name}
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()

	t.Run("should register and resolve a provider", func(t *testing.T) {
		reg := registry.NewRegistry()
		require.NoError(t, reg.Register(ctx, &stubProvider{name: "openai"}))

		provider, err := reg.Resolve(ctx, "openai")
		require.NoError(t, err)
		require.Equal(t, "openai", provider.Name())
	})

	t.Run("should resolve case-insensitively", func(t *testing.T) {
		reg := registry.NewRegistry()
		require.NoError(t, reg.Register(ctx, &stubProvider{name: "OpenAI"}))

		provider, err := reg.Resolve(ctx, "  openai ")
		require.NoError(t, err)
		require.Equal(t, "OpenAI", provider.Name())
	})

	t.Run("should reject a nil provider", func(t *testing.T) {
		reg := registry.NewRegistry()
		require.Error(t, reg.Register(ctx, nil))
	})

	t.Run("should reject an empty provider name", func(t *testing.T) {
		reg := registry.NewRegistry()
		require.Error(t, reg.Register(ctx, &stubProvider{name: "  "}))
	})

	t.Run("should reject duplicate registration", func(t *testing.T) {
		reg := registry.NewRegistry()
		require.NoError(t, reg.Register(ctx, &stubProvider{name: "openai"}))
		require.Error(t, reg.Register(ctx, &stubProvider{name: "OPENAI"}))
	})

	t.Run("should return error for unknown provider", func(t *testing.T) {
		reg := registry.NewRegistry()
		_, err := reg.Resolve(ctx, "gemini")
		require.Error(t, err)
	})

	t.Run("should make the first registered provider the default", func(t *testing.T) {
		reg := registry.NewRegistry()
		require.NoError(t, reg.Register(ctx, &stubProvider{name: "anthropic"}))
		require.NoError(t, reg.Register(ctx, &stubProvider{name: "openai"}))

		provider, err := reg.Default(ctx)
		require.NoError(t, err)
		require.Equal(t, "anthropic", provider.Name())
	})

	t.Run("should honor SetDefault", func(t *testing.T) {
		reg := registry.NewRegistry()
		require.NoError(t, reg.Register(ctx, &stubProvider{name: "anthropic"}))
		require.NoError(t, reg.Register(ctx, &stubProvider{name: "openai"}))
		require.NoError(t, reg.SetDefault("OpenAI"))

		provider, err := reg.Default(ctx)
		require.NoError(t, err)
		require.Equal(t, "openai", provider.Name())
	})

	t.Run("should reject SetDefault for an unregistered provider", func(t *testing.T) {
		reg := registry.NewRegistry()
		require.Error(t, reg.SetDefault("gemini"))
	})

	t.Run("should return error when no default is configured", func(t *testing.T) {
		reg := registry.NewRegistry()
		_, err := reg.Default(ctx)
		require.Error(t, err)
	})

	t.Run("should list provider names sorted", func(t *testing.T) {
		reg := registry.NewRegistry()
		require.NoError(t, reg.Register(ctx, &stubProvider{name: "openai"}))
		require.NoError(t, reg.Register(ctx, &stubProvider{name: "anthropic"}))
		require.NoError(t, reg.Register(ctx, &stubProvider{name: "gemini"}))

		require.Equal(t, []string{"anthropic", "gemini", "openai"}, reg.List(ctx))
	})
}
