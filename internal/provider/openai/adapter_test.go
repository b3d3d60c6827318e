package openai_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eduforge/tutorgw/internal/domain"
	"github.com/eduforge/tutorgw/internal/provider/openai"
)

func TestNewProvider_Success(t *testing.T) {
	config := openai.Config{
		APIKey:  "test-api-key",
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o",
		Timeout: 60,
	}

	provider, err := openai.NewProvider(config)

	require.NoError(t, err)
	require.NotNil(t, provider)
	require.Equal(t, "openai", provider.Name())
	require.Equal(t, "gpt-4o", provider.Identity().DisplayModel)
}

func TestNewProvider_MissingAPIKey(t *testing.T) {
	config := openai.Config{
		APIKey:  "",
		BaseURL: "https://api.openai.com/v1",
		Timeout: 60,
	}

	provider, err := openai.NewProvider(config)

	require.Error(t, err)
	require.Nil(t, provider)
	require.Contains(t, err.Error(), "OpenAI API key is required")
}

func TestProvider_Stream_NilRequest(t *testing.T) {
	provider, err := openai.NewProvider(openai.Config{APIKey: "test-key"})
	require.NoError(t, err)

	ctx := context.Background()
	chunks, err := provider.Stream(ctx, nil)

	require.Error(t, err)
	require.Nil(t, chunks)
	require.Contains(t, err.Error(), "request cannot be nil")
}

func TestProvider_Stream_ForwardsDeltasAndUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)

		w.Header().Set("Content-Type", "text/event-stream")
		frames := []string{
			`{"id":"chatcmpl-1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"La PEEP "}}]}`,
			`{"id":"chatcmpl-1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"mantiene los alvéolos abiertos."}}]}`,
			`{"id":"chatcmpl-1","object":"chat.completion.chunk","choices":[],"usage":{"prompt_tokens":8,"completion_tokens":12,"total_tokens":20}}`,
		}
		for _, frame := range frames {
			_, _ = w.Write([]byte("data: " + frame + "\n\n"))
		}
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	provider, err := openai.NewProvider(openai.Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "gpt-4o",
		Timeout: 5,
	})
	require.NoError(t, err)

	ctx := context.Background()
	chunks, err := provider.Stream(ctx, &domain.StreamRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "¿Qué es la PEEP?"}},
	})
	require.NoError(t, err)

	var collected []domain.StreamChunk
	timeout := time.After(5 * time.Second)
	for chunks != nil {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				break
			}
			collected = append(collected, chunk)
		case <-timeout:
			t.Fatal("timed out waiting for chunk stream to close")
		}
	}

	require.Len(t, collected, 3)
	require.Equal(t, "La PEEP ", collected[0].Delta)
	require.Equal(t, "mantiene los alvéolos abiertos.", collected[1].Delta)

	terminal := collected[2]
	require.True(t, terminal.Done)
	require.Equal(t, "chatcmpl-1", terminal.MessageID)
	require.Equal(t, 20, terminal.Usage.TotalTokens)
}

func TestProvider_Stream_SurfacesAPIErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	provider, err := openai.NewProvider(openai.Config{
		APIKey:  "bad-key",
		BaseURL: server.URL,
		Model:   "gpt-4o",
		Timeout: 5,
	})
	require.NoError(t, err)

	ctx := context.Background()
	chunks, err := provider.Stream(ctx, &domain.StreamRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: "hola"}},
	})
	require.NoError(t, err)

	var last domain.StreamChunk
	for chunk := range chunks {
		last = chunk
	}

	require.Error(t, last.Err)

	var httpErr *domain.HTTPError
	require.ErrorAs(t, last.Err, &httpErr)
	require.Equal(t, http.StatusUnauthorized, httpErr.Status)
}
