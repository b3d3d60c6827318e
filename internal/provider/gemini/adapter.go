// Package gemini provides the vendor adapter for Google's Gemini API.
// Gemini has no official Go SDK here, so this is a raw HTTP client.
// Unlike the SSE vendors, the streamGenerateContent endpoint returns a
// single JSON array only after the body fully drains: the client buffers
// the whole body, parses once, then emits chunks synthetically so the
// lazy-sequence contract holds at the interface level.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/eduforge/tutorgw/internal/domain"
	"github.com/eduforge/tutorgw/internal/observability"
)

const providerName = "gemini"

// HTTPClient is the transport seam; swapped out in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Provider implements the domain.Provider interface for Gemini.
type Provider struct {
	apiKey        string
	baseURL       string
	apiVersion    string
	model         string
	fallbackModel string
	client        HTTPClient
	identity      domain.ProviderIdentity
}

// NewProvider creates a new Gemini provider.
func NewProvider(config Config) (*Provider, error) {
	if config.APIKey == "" {
		return nil, errors.New("Gemini API key is required")
	}

	timeout := time.Duration(config.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Provider{
		apiKey:        config.APIKey,
		baseURL:       config.BaseURL,
		apiVersion:    config.APIVersion,
		model:         config.Model,
		fallbackModel: config.FallbackModel,
		client:        &http.Client{Timeout: timeout},
		identity: domain.ProviderIdentity{
			Name:         providerName,
			DisplayModel: config.Model,
			BaseEndpoint: config.BaseURL,
		},
	}, nil
}

// SetHTTPClient swaps the transport. Used by tests.
func (p *Provider) SetHTTPClient(client HTTPClient) {
	p.client = client
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
// 404 (unknown model or API version) it retries once against the
// configured fallback model before surfacing an error.
func (p *Provider) Stream(ctx context.Context, req *domain.StreamRequest) (<-chan domain.StreamChunk, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}

	chunks := make(chan domain.StreamChunk)

	go func() {
		defer close(chunks)

		logger := observability.FromContext(ctx)

		frames, err := p.fetch(ctx, req, p.model)
		var httpErr *domain.HTTPError
		if errors.As(err, &httpErr) && httpErr.Status == http.StatusNotFound &&
			p.fallbackModel != "" && p.fallbackModel != p.model {
			logger.Warn("model not addressable, retrying with fallback model",
				observability.String("model", p.model),
				observability.String("fallback_model", p.fallbackModel))
			frames, err = p.fetch(ctx, req, p.fallbackModel)
		}
		if err != nil {
			sendChunk(ctx, chunks, domain.StreamChunk{Err: err})
			return
		}

		p.emit(ctx, frames, chunks)
	}()

	return chunks, nil
}

// fetch performs one request against a concrete model and returns the
// raw response frames after draining the body.
func (p *Provider) fetch(ctx context.Context, req *domain.StreamRequest, model string) ([]json.RawMessage, error) {
	body, err := json.Marshal(p.toAPIRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/models/%s:streamGenerateContent?key=%s",
		p.baseURL, p.apiVersion, model, p.apiKey)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseAPIError(resp.StatusCode, respBody)
	}

	// The endpoint answers with one JSON array covering the whole
	// generation. Elements that fail to parse are skipped later.
	var frames []json.RawMessage
	if err := json.Unmarshal(respBody, &frames); err != nil {
		// Some deployments answer a bare object for single-frame bodies.
		var single json.RawMessage
		if objErr := json.Unmarshal(respBody, &single); objErr != nil {
			return nil, fmt.Errorf("failed to decode response body: %w", err)
		}
		frames = []json.RawMessage{single}
	}
	return frames, nil
}

// emit replays the buffered frames as a chunk sequence.
func (p *Provider) emit(ctx context.Context, frames []json.RawMessage, chunks chan<- domain.StreamChunk) {
	var usage domain.Usage

	for _, frame := range frames {
		var parsed geminiResponse
		if err := json.Unmarshal(frame, &parsed); err != nil {
			// Malformed frames (keep-alives, comments) are expected.
			continue
		}

		if parsed.UsageMetadata != nil {
			usage = domain.Usage{
				PromptTokens:     parsed.UsageMetadata.PromptTokenCount,
				CompletionTokens: parsed.UsageMetadata.CandidatesTokenCount,
				TotalTokens:      parsed.UsageMetadata.TotalTokenCount,
			}
		}

		for _, candidate := range parsed.Candidates {
			for _, part := range candidate.Content.Parts {
				if part.Text == "" {
					continue
				}
				if !sendChunk(ctx, chunks, domain.StreamChunk{Delta: part.Text}) {
					return
				}
			}
		}
	}

	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}
	sendChunk(ctx, chunks, domain.StreamChunk{
		Done:      true,
		MessageID: uuid.New().String(),
		Usage:     &usage,
	})
}

func (p *Provider) toAPIRequest(req *domain.StreamRequest) map[string]any {
	contents := make([]map[string]any, 0, len(req.Messages))
	for _, msg := range req.Messages {
		role := "user"
		if msg.Role == domain.RoleAssistant {
			// Gemini names the assistant role "model".
			role = "model"
		}
		contents = append(contents, map[string]any{
			"role":  role,
			"parts": []map[string]any{{"text": msg.Content}},
		})
	}

	generationConfig := map[string]any{}
	if req.Temperature > 0 {
		generationConfig["temperature"] = req.Temperature
	}
	if req.TopP > 0 {
		generationConfig["topP"] = req.TopP
	}
	if req.MaxTokens > 0 {
		generationConfig["maxOutputTokens"] = req.MaxTokens
	}

	apiReq := map[string]any{
		"contents":         contents,
		"generationConfig": generationConfig,
	}
	if req.SystemPrompt != "" {
		apiReq["systemInstruction"] = map[string]any{
			"parts": []map[string]any{{"text": req.SystemPrompt}},
		}
	}
	return apiReq
}

// parseAPIError extracts the vendor error message, falling back to the
// bare status when the body is not the expected JSON shape.
func parseAPIError(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}

	// Error bodies arrive as an object or a one-element array of objects.
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		var arr []json.RawMessage
		if arrErr := json.Unmarshal(body, &arr); arrErr == nil && len(arr) > 0 {
			_ = json.Unmarshal(arr[0], &errResp)
		}
	}

	if errResp.Error.Message == "" {
		return &domain.HTTPError{Status: statusCode}
	}
	return &domain.HTTPError{Status: statusCode, Message: errResp.Error.Message}
}

func sendChunk(ctx context.Context, chunks chan<- domain.StreamChunk, chunk domain.StreamChunk) bool {
	select {
	case chunks <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// Internal API types.

type geminiResponse struct {
	Candidates    []geminiCandidate    `json:"candidates,omitempty"`
	UsageMetadata *geminiUsageMetadata `json:"usageMetadata,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}
