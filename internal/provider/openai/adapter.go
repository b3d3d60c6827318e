// Package openai provides the vendor adapter for the OpenAI API using the
// official SDK. It implements the domain.Provider interface and converts
// the SDK's streaming iterator into the canonical chunk sequence.
package openai

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/eduforge/tutorgw/internal/domain"
	"github.com/eduforge/tutorgw/internal/observability"
)

const providerName = "openai"

// Provider implements the domain.Provider interface for OpenAI.
type Provider struct {
	client        openai.Client
	model         string
	fallbackModel string
	identity      domain.ProviderIdentity
}

// NewProvider creates a new OpenAI provider.
func NewProvider(config Config) (*Provider, error) {
	if config.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
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
		client:        openai.NewClient(opts...),
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

// streamModel drives one SDK stream for a concrete model. Terminal
// chunks are emitted here on success; errors are returned for the caller
// to translate or retry.
func (p *Provider) streamModel(
	ctx context.Context,
	req *domain.StreamRequest,
	model string,
	chunks chan<- domain.StreamChunk,
) error {
	stream := p.client.Chat.Completions.NewStreaming(ctx, p.toSDKParams(req, model))
	defer stream.Close()

	var messageID string
	var usage domain.Usage

	for stream.Next() {
		chunk := stream.Current()
		if messageID == "" {
			messageID = chunk.ID
		}

		// Usage only appears on the terminal frame when requested via
		// stream options.
		if chunk.Usage.TotalTokens > 0 {
			usage = domain.Usage{
				PromptTokens:     int(chunk.Usage.PromptTokens),
				CompletionTokens: int(chunk.Usage.CompletionTokens),
				TotalTokens:      int(chunk.Usage.TotalTokens),
			}
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			if !sendChunk(ctx, chunks, domain.StreamChunk{Delta: delta}) {
				return ctx.Err()
			}
		}
	}

	if err := stream.Err(); err != nil {
		return err
	}

	sendChunk(ctx, chunks, domain.StreamChunk{
		Done:      true,
		MessageID: messageID,
		Usage:     &usage,
	})
	return nil
}

func (p *Provider) toSDKParams(req *domain.StreamRequest, model string) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case domain.RoleAssistant:
			messages = append(messages, openai.AssistantMessage(msg.Content))
		case domain.RoleSystem:
			messages = append(messages, openai.SystemMessage(msg.Content))
		default:
			messages = append(messages, openai.UserMessage(msg.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.TopP > 0 {
		params.TopP = openai.Float(req.TopP)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	return params
}

// toHTTPError converts SDK failures into the transport error shape the
// gateway classifies, so vendor error types never leak upstream.
func toHTTPError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		return &domain.HTTPError{Status: apiErr.StatusCode, Message: message}
	}
	return err
}

func isModelNotFound(err error) bool {
	var apiErr *openai.Error
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
