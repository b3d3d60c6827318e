package anthropic_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eduforge/tutorgw/internal/provider/anthropic"
)

func TestNewProvider_Success(t *testing.T) {
	config := anthropic.Config{
		APIKey:  "test-api-key",
		BaseURL: "https://api.anthropic.com",
		Model:   "claude-sonnet-4-5-20250929",
		Timeout: 60,
	}

	provider, err := anthropic.NewProvider(config)

	require.NoError(t, err)
	require.NotNil(t, provider)
	require.Equal(t, "anthropic", provider.Name())
	require.Equal(t, "claude-sonnet-4-5-20250929", provider.Identity().DisplayModel)
}

func TestNewProvider_MissingAPIKey(t *testing.T) {
	config := anthropic.Config{
		APIKey:  "",
		Timeout: 60,
	}

	provider, err := anthropic.NewProvider(config)

	require.Error(t, err)
	require.Nil(t, provider)
	require.Contains(t, err.Error(), "Anthropic API key is required")
}

func TestProvider_Stream_NilRequest(t *testing.T) {
	provider, err := anthropic.NewProvider(anthropic.Config{APIKey: "test-key"})
	require.NoError(t, err)

	ctx := context.Background()
	chunks, err := provider.Stream(ctx, nil)

	require.Error(t, err)
	require.Nil(t, chunks)
	require.Contains(t, err.Error(), "request cannot be nil")
}
