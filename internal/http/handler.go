package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"unicode/utf8"

	"github.com/eduforge/tutorgw/internal/domain"
	"github.com/eduforge/tutorgw/internal/observability"
)

// maxQuestionLength bounds inbound user messages.
const maxQuestionLength = 2000

// Handler handles HTTP requests.
type Handler struct {
	gateway  *domain.Gateway
	registry domain.ProviderRegistry
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(gateway *domain.Gateway, registry domain.ProviderRegistry) *Handler {
	return &Handler{
		gateway:  gateway,
		registry: registry,
	}
}

// HandleAnswerStream processes one conversation turn and relays the
// gateway event sequence over SSE:
// start, token*, end(usage), suggestions -- or start, error.
func (h *Handler) HandleAnswerStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, err := decodeAnswerRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx = observability.WithProvider(ctx, req.Provider)
	ctx = observability.WithLesson(ctx, req.Lesson.LessonID)

	logger := observability.FromContext(ctx)
	logger.Info("answer stream request received",
		observability.String("provider", req.Provider),
		observability.Int("question_length", len(req.Question)),
		observability.Int("history_turns", len(req.History)))

	flusher, ok := w.(http.Flusher)
	if !ok {
		logger.Error("streaming not supported")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	events, err := h.gateway.StreamAnswer(ctx, req)
	if err != nil {
		logger.Error("answer stream rejected", observability.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Set headers for SSE.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for {
		select {
		case <-ctx.Done():
			// Client disconnected: the gateway observes the same context
			// and stops on its own.
			logger.Info("answer stream context done", observability.Error(ctx.Err()))
			return

		case event, open := <-events:
			if !open {
				logger.Info("answer stream completed")
				return
			}

			data, _ := json.Marshal(event)
			fmt.Fprintf(w, "data: %s\n\n", string(data))
			flusher.Flush()
		}
	}
}

// HandleAnswer processes one conversation turn and returns the
// aggregated answer as a single JSON document.
func (h *Handler) HandleAnswer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, err := decodeAnswerRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx = observability.WithProvider(ctx, req.Provider)
	ctx = observability.WithLesson(ctx, req.Lesson.LessonID)

	logger := observability.FromContext(ctx)

	result, err := h.gateway.Answer(ctx, req)
	if err != nil {
		logger.Error("answer failed", observability.Error(err))

		var provErr *domain.ProviderError
		if errors.As(err, &provErr) {
			writeJSON(w, provErr.HTTPStatus, map[string]string{
				"error": provErr.Message,
				"code":  string(provErr.Kind),
			})
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	logger.Info("answer succeeded",
		observability.Int("tokens", result.Usage.TotalTokens),
		observability.Int("answer_length", len(result.Answer)))

	writeJSON(w, http.StatusOK, result)
}

// HandleProviders lists the configured provider names.
func (h *Handler) HandleProviders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"providers": h.registry.List(r.Context()),
	})
}

// HandleHealth handles health check requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func decodeAnswerRequest(r *http.Request) (*domain.AnswerRequest, error) {
	var req domain.AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}
	if req.Question == "" {
		return nil, errors.New("question is required")
	}
	// Characters, not bytes: accented questions must not hit the limit early.
	if utf8.RuneCountInString(req.Question) > maxQuestionLength {
		return nil, fmt.Errorf("question exceeds %d characters", maxQuestionLength)
	}
	return &req, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// Already written status, can't change it.
		return
	}
}
