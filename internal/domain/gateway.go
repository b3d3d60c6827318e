package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/eduforge/tutorgw/internal/observability"
)

// GatewayConfig tunes the orchestrator. Zero values are replaced with
// defaults by NewGateway.
type GatewayConfig struct {
	// MaxRetries is the default retry budget (1 retry = 2 total attempts).
	MaxRetries int

	// StreamTimeout is the wall-clock budget for a single attempt.
	StreamTimeout time.Duration

	// BackoffUnit scales the exponential backoff (2^attempt * unit).
	BackoffUnit time.Duration

	// DefaultTemperature is used when the request leaves temperature unset.
	// MinTemperature and MaxTemperature clamp the sampling temperature
	// to the band tuned for tutoring answers.
	DefaultTemperature float64
	MinTemperature     float64
	MaxTemperature     float64

	// MaxOutputTokens is forwarded to providers.
	MaxOutputTokens int

	// ReplayChunkSize and ReplayChunkDelay pace the synthetic stream used
	// for cache hits and fallback answers. Product tuning, not contract.
	ReplayChunkSize  int
	ReplayChunkDelay time.Duration
}

func (c GatewayConfig) withDefaults() GatewayConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 1
	}
	if c.StreamTimeout <= 0 {
		c.StreamTimeout = 30 * time.Second
	}
	if c.BackoffUnit <= 0 {
		c.BackoffUnit = time.Second
	}
	if c.DefaultTemperature <= 0 {
		c.DefaultTemperature = 0.3
	}
	if c.MinTemperature <= 0 {
		c.MinTemperature = 0.2
	}
	if c.MaxTemperature <= 0 {
		c.MaxTemperature = 0.5
	}
	if c.MaxOutputTokens <= 0 {
		c.MaxOutputTokens = 1024
	}
	if c.ReplayChunkSize <= 0 {
		c.ReplayChunkSize = 48
	}
	if c.ReplayChunkDelay <= 0 {
		c.ReplayChunkDelay = 30 * time.Millisecond
	}
	return c
}

// Gateway orchestrates one answer cycle: cache check, provider streaming
// with retry/backoff and per-attempt deadlines, failure classification,
// and deterministic fallback. Raw provider errors never escape it.
type Gateway struct {
	registry ProviderRegistry
	cache    ResponseCache
	fallback *FallbackGenerator
	sanitize Sanitizer
	cfg      GatewayConfig
}

// NewGateway creates a gateway. cache may be nil (caching disabled);
// sanitize may be nil (CleanText is used).
func NewGateway(registry ProviderRegistry, cache ResponseCache, sanitize Sanitizer, cfg GatewayConfig) *Gateway {
	if sanitize == nil {
		sanitize = CleanText
	}
	return &Gateway{
		registry: registry,
		cache:    cache,
		fallback: NewFallbackGenerator(sanitize),
		sanitize: sanitize,
		cfg:      cfg.withDefaults(),
	}
}

// StreamAnswer runs one answer cycle and emits the outbound event
// sequence: start, token*, end(usage), suggestions -- or start, error.
// The channel closes after the terminal event. Cancelling ctx stops
// forwarding immediately and suppresses cache writes.
func (g *Gateway) StreamAnswer(ctx context.Context, req *AnswerRequest) (<-chan Event, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}
	if strings.TrimSpace(req.Question) == "" {
		return nil, errors.New("question cannot be empty")
	}

	events := make(chan Event)
	go g.run(ctx, req, events)
	return events, nil
}

// Answer drains StreamAnswer into an aggregated result.
func (g *Gateway) Answer(ctx context.Context, req *AnswerRequest) (*AnswerResult, error) {
	events, err := g.StreamAnswer(ctx, req)
	if err != nil {
		return nil, err
	}

	result := &AnswerResult{Provider: req.Provider}
	var builder strings.Builder
	for event := range events {
		switch event.Type {
		case EventToken:
			builder.WriteString(event.Delta)
		case EventEnd:
			if event.Usage != nil {
				result.Usage = *event.Usage
			}
		case EventSuggestions:
			result.Suggestions = event.Suggestions
		case EventError:
			return nil, NewProviderError(event.Code, event.Message)
		}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	result.Answer = builder.String()
	return result, nil
}

func (g *Gateway) run(ctx context.Context, req *AnswerRequest, events chan<- Event) {
	defer close(events)

	logger := observability.FromContext(ctx)

	emit := func(event Event) bool {
		select {
		case events <- event:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !emit(Event{Type: EventStart}) {
		return
	}

	provider, resolveErr := g.resolveProvider(ctx, req.Provider)

	providerKey := strings.ToLower(strings.TrimSpace(req.Provider))
	if provider != nil {
		providerKey = provider.Name()
	}
	fingerprint := Fingerprint(req.Question, req.Lesson.LessonID, providerKey)

	if g.cache != nil && !req.NoCache {
		entry, cacheErr := g.cache.Get(ctx, fingerprint)
		if cacheErr != nil && !errors.Is(cacheErr, ErrCacheMiss) {
			logger.Warn("cache get failed, continuing without cache", observability.Error(cacheErr))
		}
		if entry != nil && !entry.NoCache {
			logger.Info("cache hit, replaying cached answer",
				observability.String("fingerprint", fingerprint))
			g.replay(ctx, req, entry.Answer, entry.Usage, emit)
			return
		}
	}

	if resolveErr != nil {
		logger.Warn("no provider available, serving deterministic fallback",
			observability.String("requested", req.Provider))
		g.serveFallback(ctx, req, emit)
		return
	}

	budget := g.cfg.MaxRetries
	switch {
	case req.MaxRetries > 0:
		budget = req.MaxRetries
	case req.MaxRetries < 0:
		budget = 0
	}

	streamReq := g.buildStreamRequest(req)

	var lastErr *ProviderError
	var abortedEarly bool
	for attempt := 0; attempt <= budget; attempt++ {
		if attempt > 0 {
			if !g.backoff(ctx, attempt-1) {
				return
			}
			logger.Info("retrying provider stream",
				observability.String("provider", provider.Name()),
				observability.Int("attempt", attempt))
		}

		answer, usage, forwarded, attemptErr := g.streamOnce(ctx, provider, streamReq, emit)
		if ctx.Err() != nil {
			// Aborted by the caller: stop immediately, no cache write.
			return
		}

		if attemptErr == nil && answer == "" {
			// A 200 with no text is indistinguishable from a transient
			// fault for tutoring purposes.
			attemptErr = NewProviderError(KindEmptyResponse, "provider returned no content")
		}

		if attemptErr == nil {
			g.finish(ctx, req, provider, fingerprint, answer, usage, emit)
			return
		}

		lastErr = attemptErr
		logger.Warn("provider stream attempt failed",
			observability.String("provider", provider.Name()),
			observability.Int("attempt", attempt),
			observability.String("kind", string(attemptErr.Kind)),
			observability.Error(attemptErr))

		if !attemptErr.Retryable {
			break
		}
		if forwarded {
			// Tokens already forwarded cannot be unsent; surface instead
			// of retrying into a duplicated stream.
			abortedEarly = true
			break
		}
	}

	if lastErr != nil && lastErr.Kind == KindEmptyResponse {
		logger.Info("provider exhausted with empty responses, serving deterministic fallback")
		g.serveFallback(ctx, req, emit)
		return
	}

	final := lastErr
	if final == nil {
		final = NewProviderError(KindProviderError, "provider stream failed")
	} else if final.Retryable && !abortedEarly {
		// Only genuine budget exhaustion is relabeled; an early abort
		// keeps the originally classified kind.
		final = NewProviderError(KindMaxRetriesExceeded, final.Error())
	}

	emit(Event{
		Type:    EventError,
		Code:    final.Kind,
		Status:  final.HTTPStatus,
		Message: final.Message,
	})
}

// streamOnce drives a single provider attempt under its own wall-clock
// budget, forwarding token deltas as they arrive.
func (g *Gateway) streamOnce(
	ctx context.Context,
	provider Provider,
	req *StreamRequest,
	emit func(Event) bool,
) (answer string, usage *Usage, forwarded bool, provErr *ProviderError) {
	attemptCtx, cancel := context.WithTimeout(ctx, g.cfg.StreamTimeout)
	defer cancel()

	chunks, err := provider.Stream(attemptCtx, req)
	if err != nil {
		return "", nil, false, Classify(err)
	}

	var builder strings.Builder
	for {
		select {
		case <-attemptCtx.Done():
			if ctx.Err() != nil {
				return builder.String(), nil, forwarded, Classify(ctx.Err())
			}
			return builder.String(), nil, forwarded,
				NewProviderError(KindTimeout, "no terminal chunk within deadline")

		case chunk, ok := <-chunks:
			if !ok {
				// Closed without a terminal chunk: treat as end.
				return builder.String(), usage, forwarded, nil
			}
			if chunk.Err != nil {
				return builder.String(), nil, forwarded, Classify(chunk.Err)
			}
			if chunk.Delta != "" {
				builder.WriteString(chunk.Delta)
				if !emit(Event{Type: EventToken, Delta: chunk.Delta}) {
					return builder.String(), nil, forwarded, Classify(ctx.Err())
				}
				forwarded = true
			}
			if chunk.Done {
				return builder.String(), chunk.Usage, forwarded, nil
			}
		}
	}
}

func (g *Gateway) finish(
	ctx context.Context,
	req *AnswerRequest,
	provider Provider,
	fingerprint, answer string,
	usage *Usage,
	emit func(Event) bool,
) {
	logger := observability.FromContext(ctx)

	answer = TruncateAnswer(g.sanitize(answer), MaxAnswerLength)
	if usage == nil {
		usage = &Usage{}
	}

	if !emit(Event{Type: EventEnd, Usage: usage}) {
		return
	}
	emit(Event{Type: EventSuggestions, Suggestions: g.fallback.Suggestions(req.Lesson)})

	if g.cache == nil {
		return
	}
	if setErr := g.cache.Set(ctx, fingerprint, answer, usage, req.NoCache); setErr != nil {
		// Cache failures must never fail answer delivery.
		logger.Warn("failed to store answer in cache",
			observability.String("provider", provider.Name()),
			observability.Error(setErr))
	}
}

// replay streams a cached answer as a synthetic token sequence so the
// consumer observes the same event shape as a live stream.
func (g *Gateway) replay(
	ctx context.Context,
	req *AnswerRequest,
	answer string,
	usage *Usage,
	emit func(Event) bool,
) {
	runes := []rune(answer)
	for i := 0; i < len(runes); i += g.cfg.ReplayChunkSize {
		end := i + g.cfg.ReplayChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		if !emit(Event{Type: EventToken, Delta: string(runes[i:end])}) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(g.cfg.ReplayChunkDelay):
		}
	}

	if usage == nil {
		usage = &Usage{}
	}
	if !emit(Event{Type: EventEnd, Usage: usage}) {
		return
	}
	emit(Event{Type: EventSuggestions, Suggestions: g.fallback.Suggestions(req.Lesson)})
}

// serveFallback streams a deterministic answer, rendered with its key
// points, references and links. Pedagogical continuity outranks strict
// LLM fidelity: the caller always receives a successful result on this
// path.
func (g *Gateway) serveFallback(ctx context.Context, req *AnswerRequest, emit func(Event) bool) {
	structured := g.fallback.Generate(req.Lesson, req.Question)
	g.replay(ctx, req, structured.Markdown(), &Usage{}, emit)
}

func (g *Gateway) resolveProvider(ctx context.Context, name string) (Provider, error) {
	if g.registry == nil {
		return nil, NewProviderError(KindNoProviderAvailable, "no provider registry configured")
	}

	if strings.TrimSpace(name) != "" {
		if provider, err := g.registry.Resolve(ctx, name); err == nil {
			return provider, nil
		}
	}

	provider, err := g.registry.Default(ctx)
	if err != nil {
		return nil, NewProviderError(KindNoProviderAvailable, "no provider configured")
	}
	return provider, nil
}

func (g *Gateway) buildStreamRequest(req *AnswerRequest) *StreamRequest {
	history := TrimHistory(req.History)
	messages := make([]Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, Message{Role: RoleUser, Content: req.Question})

	return &StreamRequest{
		Messages:     messages,
		SystemPrompt: req.SystemPrompt,
		Temperature:  g.clampTemperature(req.Temperature),
		TopP:         req.TopP,
		MaxTokens:    g.cfg.MaxOutputTokens,
	}
}

func (g *Gateway) clampTemperature(t float64) float64 {
	if t == 0 {
		t = g.cfg.DefaultTemperature
	}
	if t < g.cfg.MinTemperature {
		return g.cfg.MinTemperature
	}
	if t > g.cfg.MaxTemperature {
		return g.cfg.MaxTemperature
	}
	return t
}

// backoff sleeps 2^attempt backoff units, honoring cancellation.
func (g *Gateway) backoff(ctx context.Context, attempt int) bool {
	delay := g.cfg.BackoffUnit * time.Duration(1<<uint(attempt))
	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay):
		return true
	}
}
