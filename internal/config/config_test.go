package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eduforge/tutorgw/internal/config"
)

func TestLoad(t *testing.T) {
	t.Run("should load config with defaults", func(t *testing.T) {
		// Clear environment
		os.Clearenv()

		cfg := config.Load()

		require.NotNil(t, cfg)

		// Verify defaults
		require.Equal(t, 8080, cfg.Server.Port)
		require.Equal(t, 30, cfg.Server.ReadTimeout)
		require.Equal(t, 120, cfg.Server.WriteTimeout)

		require.Equal(t, "openai", cfg.Gateway.DefaultProvider)
		require.Equal(t, 0.3, cfg.Gateway.Temperature)
		require.Equal(t, 1024, cfg.Gateway.MaxOutputTokens)
		require.Equal(t, 30, cfg.Gateway.StreamTimeout)
		require.Equal(t, 1, cfg.Gateway.MaxRetries)

		require.Empty(t, cfg.Cache.RedisURL)
		require.Equal(t, 168, cfg.Cache.TTLHours)
		require.Equal(t, 512, cfg.Cache.MaxEntries)

		require.Empty(t, cfg.OpenAI.APIKey)
		require.Equal(t, "https://api.openai.com/v1", cfg.OpenAI.BaseURL)
		require.Equal(t, "gpt-4o", cfg.OpenAI.Model)
		require.Equal(t, "gpt-4o-mini", cfg.OpenAI.FallbackModel)

		require.Empty(t, cfg.Anthropic.APIKey)
		require.Equal(t, "https://api.anthropic.com", cfg.Anthropic.BaseURL)

		require.Empty(t, cfg.Gemini.APIKey)
		require.Equal(t, "v1beta", cfg.Gemini.APIVersion)
		require.Equal(t, "gemini-2.0-flash", cfg.Gemini.Model)
	})

	t.Run("should load config from environment variables", func(t *testing.T) {
		t.Setenv("SERVER_PORT", "9000")
		t.Setenv("DEFAULT_PROVIDER", "anthropic")
		t.Setenv("LLM_TEMPERATURE", "0.45")
		t.Setenv("STREAM_MAX_RETRIES", "2")
		t.Setenv("REDIS_URL", "redis://localhost:6379/0")
		t.Setenv("CACHE_TTL_HOURS", "24")
		t.Setenv("OPENAI_API_KEY", "sk-test-key")
		t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
		t.Setenv("GEMINI_API_KEY", "gm-test")
		t.Setenv("GEMINI_MODEL", "gemini-2.5-pro")

		cfg := config.Load()

		require.NotNil(t, cfg)
		require.Equal(t, 9000, cfg.Server.Port)
		require.Equal(t, "anthropic", cfg.Gateway.DefaultProvider)
		require.Equal(t, 0.45, cfg.Gateway.Temperature)
		require.Equal(t, 2, cfg.Gateway.MaxRetries)
		require.Equal(t, "redis://localhost:6379/0", cfg.Cache.RedisURL)
		require.Equal(t, 24, cfg.Cache.TTLHours)
		require.Equal(t, "sk-test-key", cfg.OpenAI.APIKey)
		require.Equal(t, "sk-ant-test", cfg.Anthropic.APIKey)
		require.Equal(t, "gm-test", cfg.Gemini.APIKey)
		require.Equal(t, "gemini-2.5-pro", cfg.Gemini.Model)
	})
}

func TestParseDependenciesConfig(t *testing.T) {
	t.Run("should fan out pointers into the same config", func(t *testing.T) {
		os.Clearenv()

		cfg := config.Load()
		deps := config.ParseDependenciesConfig(cfg)

		require.Same(t, &cfg.Server, deps.Server)
		require.Same(t, &cfg.Gateway, deps.Gateway)
		require.Same(t, &cfg.Cache, deps.Cache)
		require.Same(t, &cfg.OpenAI, deps.OpenAI)
		require.Same(t, &cfg.Gemini, deps.Gemini)
	})
}
