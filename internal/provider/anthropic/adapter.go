// Package anthropic provides the vendor adapter for the Anthropic API
// using the official SDK. Anthropic takes the system prompt as a separate
// parameter rather than a leading message, and reports usage split across
// the message start and delta events.
package anthropic

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/eduforge/tutorgw/internal/domain"
	"github.com/eduforge/tutorgw/internal/observability"
)

const providerName = "anthropic"

// Provider implements the domain.Provider interface for Anthropic.
type Provider struct {
	client        anthropic.Client
	model         string
	fallbackModel string
	identity      domain.ProviderIdentity
}

// NewProvider creates a new Anthropic provider.
func NewProvider(config Config) (*Provider, error) {
	if config.APIKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(time.Duration(config.Timeout)*time.Second))
	}

	return &Provider{
		client:        anthropic.NewClient(opts...),
		model:         config.Model,
		fallbackModel: config.FallbackModel,
		identity: domain.ProviderIdentity{
			Name:         providerName,
			DisplayModel: config.Model,
			BaseEndpoint: config.BaseURL,
		},
	}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return providerName
}

// Identity returns the immutable provider identity.
func (p *Provider) Identity() domain.ProviderIdentity {
	return p.identity
}

// Stream sends a completion request and returns a stream of chunks. On a
// 404 (unknown model) it retries once against the configured fallback
// model before surfacing an error.
func (p *Provider) Stream(ctx context.Context, req *domain.StreamRequest) (<-chan domain.StreamChunk, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}

	chunks := make(chan domain.StreamChunk)

	go func() {
		defer close(chunks)

		logger := observability.FromContext(ctx)

		err := p.streamModel(ctx, req, p.model, chunks)
		if isModelNotFound(err) && p.fallbackModel != "" && p.fallbackModel != p.model {
			logger.Warn("model not addressable, retrying with fallback model",
				observability.String("model", p.model),
				observability.String("fallback_model", p.fallbackModel))
			err = p.streamModel(ctx, req, p.fallbackModel, chunks)
		}
		if err != nil {
			sendChunk(ctx, chunks, domain.StreamChunk{Err: toHTTPError(err)})
		}
	}()

	return chunks, nil
}

func (p *Provider) streamModel(
	ctx context.Context,
	req *domain.StreamRequest,
	model string,
	chunks chan<- domain.StreamChunk,
) error {
	stream := p.client.Messages.NewStreaming(ctx, p.toSDKParams(req, model))
	defer stream.Close()

	var messageID string
	var usage domain.Usage

	for stream.Next() {
		event := stream.Current()

		switch eventVariant := event.AsAny().(type) {
		case anthropic.MessageStartEvent:
			messageID = eventVariant.Message.ID
			usage.PromptTokens = int(eventVariant.Message.Usage.InputTokens)

		case anthropic.ContentBlockDeltaEvent:
			if textDelta, ok := eventVariant.Delta.AsAny().(anthropic.TextDelta); ok && textDelta.Text != "" {
				if !sendChunk(ctx, chunks, domain.StreamChunk{Delta: textDelta.Text}) {
					return ctx.Err()
				}
			}

		case anthropic.MessageDeltaEvent:
			// Output token count only settles on the terminal delta.
			usage.CompletionTokens = int(eventVariant.Usage.OutputTokens)
		}
	}

	if err := stream.Err(); err != nil {
		return err
	}

	usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	sendChunk(ctx, chunks, domain.StreamChunk{
		Done:      true,
		MessageID: messageID,
		Usage:     &usage,
	})
	return nil
}

func (p *Provider) toSDKParams(req *domain.StreamRequest, model string) anthropic.MessageNewParams {
	var systemBlocks []anthropic.TextBlockParam
	if req.SystemPrompt != "" {
		systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: req.SystemPrompt})
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch msg.Role {
		case domain.RoleSystem:
			// Anthropic uses a separate system parameter, not a message.
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: msg.Content})
		case domain.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if len(systemBlocks) > 0 {
		params.System = systemBlocks
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	if req.TopP > 0 {
		params.TopP = anthropic.Float(req.TopP)
	}
	return params
}

func toHTTPError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &domain.HTTPError{Status: apiErr.StatusCode, Message: apiErr.Error()}
	}
	return err
}

func isModelNotFound(err error) bool {
	var apiErr *anthropic.Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func sendChunk(ctx context.Context, chunks chan<- domain.StreamChunk, chunk domain.StreamChunk) bool {
	select {
	case chunks <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
