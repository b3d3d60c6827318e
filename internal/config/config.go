package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/dig"

	"github.com/eduforge/tutorgw/internal/provider/anthropic"
	"github.com/eduforge/tutorgw/internal/provider/gemini"
	"github.com/eduforge/tutorgw/internal/provider/openai"
)

// Config represents the gateway configuration, read once at startup.
type Config struct {
	Server    ServerConfig
	CORS      CORSConfig
	Gateway   GatewayConfig
	Cache     CacheConfig
	OpenAI    openai.Config
	Anthropic anthropic.Config
	Gemini    gemini.Config
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port         int `env:"SERVER_PORT"          envDefault:"8080"`
	ReadTimeout  int `env:"SERVER_READ_TIMEOUT"  envDefault:"30"`
	WriteTimeout int `env:"SERVER_WRITE_TIMEOUT" envDefault:"120"`
}

// CORSConfig contains CORS policy settings.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"   envSeparator:"," envDefault:"GET,POST,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"   envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"                  envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE"                            envDefault:"86400"`
}

// GatewayConfig contains orchestrator tuning.
type GatewayConfig struct {
	DefaultProvider    string  `env:"DEFAULT_PROVIDER"       envDefault:"openai"`
	Temperature        float64 `env:"LLM_TEMPERATURE"        envDefault:"0.3"`
	MaxOutputTokens    int     `env:"LLM_MAX_OUTPUT_TOKENS"  envDefault:"1024"`
	StreamTimeout      int     `env:"STREAM_TIMEOUT_SECONDS" envDefault:"30"`
	MaxRetries         int     `env:"STREAM_MAX_RETRIES"     envDefault:"1"`
	ReplayChunkSize    int     `env:"REPLAY_CHUNK_SIZE"      envDefault:"48"`
	ReplayChunkDelayMS int     `env:"REPLAY_CHUNK_DELAY_MS"  envDefault:"30"`
}

// CacheConfig contains response-cache settings. An empty RedisURL
// silently selects the in-memory fallback store.
type CacheConfig struct {
	RedisURL   string `env:"REDIS_URL"`
	TTLHours   int    `env:"CACHE_TTL_HOURS"   envDefault:"168"`
	MaxEntries int    `env:"CACHE_MAX_ENTRIES" envDefault:"512"`
}

// DepConfig is used for dependency injection with dig.
type DepConfig struct {
	dig.Out

	Server    *ServerConfig
	CORS      *CORSConfig
	Gateway   *GatewayConfig
	Cache     *CacheConfig
	OpenAI    *openai.Config
	Anthropic *anthropic.Config
	Gemini    *gemini.Config
}

// Load loads environment files and parses configuration.
func Load() *Config {
	for _, file := range []string{".env"} {
		_ = godotenv.Load(file)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}

// ParseDependenciesConfig returns pointers to sub-configs for dependency injection.
func ParseDependenciesConfig(cfg *Config) DepConfig {
	return DepConfig{
		Server:    &cfg.Server,
		CORS:      &cfg.CORS,
		Gateway:   &cfg.Gateway,
		Cache:     &cfg.Cache,
		OpenAI:    &cfg.OpenAI,
		Anthropic: &cfg.Anthropic,
		Gemini:    &cfg.Gemini,
	}
}
