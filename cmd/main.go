package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/dig"

	"github.com/eduforge/tutorgw/internal/cache"
	"github.com/eduforge/tutorgw/internal/cache/memory"
	redisstore "github.com/eduforge/tutorgw/internal/cache/redis"
	"github.com/eduforge/tutorgw/internal/config"
	"github.com/eduforge/tutorgw/internal/domain"
	"github.com/eduforge/tutorgw/internal/http"
	"github.com/eduforge/tutorgw/internal/http/middleware"
	"github.com/eduforge/tutorgw/internal/observability"
	"github.com/eduforge/tutorgw/internal/provider/anthropic"
	"github.com/eduforge/tutorgw/internal/provider/gemini"
	"github.com/eduforge/tutorgw/internal/provider/openai"
	"github.com/eduforge/tutorgw/internal/provider/registry"
)

const shutdownTimeout = 10 * time.Second

func main() {
	container := buildContainer()

	err := container.Invoke(func(server *http.Server, responseCache domain.ResponseCache) {
		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case startErr := <-errCh:
			if startErr != nil {
				log.Fatalf("Server failed to start: %v", startErr)
			}
		case <-sigCh:
		}

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if shutdownErr := server.Shutdown(ctx); shutdownErr != nil {
			log.Printf("Server shutdown failed: %v", shutdownErr)
		}
		if closeErr := responseCache.Close(); closeErr != nil {
			log.Printf("Cache close failed: %v", closeErr)
		}
	})
	if err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
}

func buildContainer() *dig.Container {
	container := dig.New()

	// Configuration
	if err := container.Provide(config.Load); err != nil {
		log.Fatalf("Failed to provide config: %v", err)
	}
	if err := container.Provide(config.ParseDependenciesConfig); err != nil {
		log.Fatalf("Failed to provide config dependencies: %v", err)
	}

	// Observability
	if err := container.Provide(observability.InitLogger); err != nil {
		log.Fatalf("Failed to provide logger: %v", err)
	}

	// Provider Registry
	if err := container.Provide(func() domain.ProviderRegistry {
		return registry.NewRegistry()
	}); err != nil {
		log.Fatalf("Failed to provide registry: %v", err)
	}

	// Providers. Each is optional: a missing API key yields a nil provider
	// that registration skips.
	if err := container.Provide(func(cfg *openai.Config) (*openai.Provider, error) {
		if cfg.APIKey == "" {
			return nil, nil
		}
		return openai.NewProvider(*cfg)
	}); err != nil {
		log.Fatalf("Failed to provide OpenAI provider: %v", err)
	}
	if err := container.Provide(func(cfg *anthropic.Config) (*anthropic.Provider, error) {
		if cfg.APIKey == "" {
			return nil, nil
		}
		return anthropic.NewProvider(*cfg)
	}); err != nil {
		log.Fatalf("Failed to provide Anthropic provider: %v", err)
	}
	if err := container.Provide(func(cfg *gemini.Config) (*gemini.Provider, error) {
		if cfg.APIKey == "" {
			return nil, nil
		}
		return gemini.NewProvider(*cfg)
	}); err != nil {
		log.Fatalf("Failed to provide Gemini provider: %v", err)
	}

	// Register providers with registry (invoked for side effects)
	if err := container.Invoke(func(
		reg domain.ProviderRegistry,
		gatewayCfg *config.GatewayConfig,
		openaiProvider *openai.Provider,
		anthropicProvider *anthropic.Provider,
		geminiProvider *gemini.Provider,
	) error {
		ctx := context.Background()
		logger := observability.FromContext(ctx)

		var providers []domain.Provider
		if openaiProvider != nil {
			providers = append(providers, openaiProvider)
		}
		if anthropicProvider != nil {
			providers = append(providers, anthropicProvider)
		}
		if geminiProvider != nil {
			providers = append(providers, geminiProvider)
		}

		for _, provider := range providers {
			if err := reg.Register(ctx, provider); err != nil {
				return err
			}
			logger.Info("registered provider", observability.String("provider", provider.Name()))
		}

		if len(providers) == 0 {
			// Deterministic fallback answers keep the service usable.
			logger.Warn("no providers configured, all answers will use the deterministic fallback")
			return nil
		}

		if r, ok := reg.(*registry.Registry); ok && gatewayCfg.DefaultProvider != "" {
			if err := r.SetDefault(gatewayCfg.DefaultProvider); err != nil {
				logger.Warn("configured default provider is not registered, keeping first registered",
					observability.String("requested", gatewayCfg.DefaultProvider))
			}
		}
		return nil
	}); err != nil {
		log.Fatalf("Failed to register providers: %v", err)
	}

	// Response Cache
	if err := container.Provide(func(cfg *config.CacheConfig) domain.ResponseCache {
		ctx := context.Background()
		logger := observability.FromContext(ctx)

		fallback := memory.NewStore(cfg.MaxEntries)

		var durable cache.Store
		if cfg.RedisURL != "" {
			store, err := redisstore.NewStore(ctx, cfg.RedisURL)
			if err != nil {
				logger.Warn("redis unavailable, using in-memory cache only",
					observability.Error(err))
			} else {
				durable = store
			}
		}

		return cache.NewService(durable, fallback, time.Duration(cfg.TTLHours)*time.Hour)
	}); err != nil {
		log.Fatalf("Failed to provide response cache: %v", err)
	}

	// Domain Services
	if err := container.Provide(func(
		reg domain.ProviderRegistry,
		responseCache domain.ResponseCache,
		cfg *config.GatewayConfig,
	) *domain.Gateway {
		return domain.NewGateway(reg, responseCache, nil, domain.GatewayConfig{
			MaxRetries:         cfg.MaxRetries,
			StreamTimeout:      time.Duration(cfg.StreamTimeout) * time.Second,
			DefaultTemperature: cfg.Temperature,
			MaxOutputTokens:    cfg.MaxOutputTokens,
			ReplayChunkSize:    cfg.ReplayChunkSize,
			ReplayChunkDelay:   time.Duration(cfg.ReplayChunkDelayMS) * time.Millisecond,
		})
	}); err != nil {
		log.Fatalf("Failed to provide gateway: %v", err)
	}

	// HTTP Layer
	if err := container.Provide(func(corsCfg *config.CORSConfig) middleware.Middleware {
		return middleware.BuildMiddlewareChain(corsCfg)
	}); err != nil {
		log.Fatalf("Failed to provide middleware chain: %v", err)
	}
	if err := container.Provide(http.NewHandler); err != nil {
		log.Fatalf("Failed to provide HTTP handler: %v", err)
	}
	if err := container.Provide(http.NewServer); err != nil {
		log.Fatalf("Failed to provide HTTP server: %v", err)
	}

	return container
}
