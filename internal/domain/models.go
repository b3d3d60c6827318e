package domain

import "time"

// Roles for chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"` // user, assistant, system
	Content string `json:"content"`
}

// ProviderIdentity describes a configured vendor. Built once at startup
// from configuration and never mutated.
type ProviderIdentity struct {
	Name         string `json:"name"`
	DisplayModel string `json:"display_model"`
	BaseEndpoint string `json:"base_endpoint"`
}

// StreamRequest represents a unified streaming completion request.
type StreamRequest struct {
	Messages     []Message `json:"messages"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Temperature  float64   `json:"temperature,omitempty"`
	TopP         float64   `json:"top_p,omitempty"`
	MaxTokens    int       `json:"max_tokens,omitempty"`
}

// StreamChunk represents a single streaming response chunk. A chunk with
// Done set or a non-nil Err is terminal: the provider closes the channel
// and produces nothing further.
type StreamChunk struct {
	Delta     string `json:"delta"`
	Done      bool   `json:"done"`
	MessageID string `json:"message_id,omitempty"`
	Usage     *Usage `json:"usage,omitempty"`
	Err       error  `json:"-"`
}

// Usage tracks token consumption. Totals are only reliable once a stream
// reaches its terminal chunk.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// LessonContext carries the lesson the learner is asking about.
type LessonContext struct {
	LessonID   string   `json:"lesson_id"`
	Title      string   `json:"title"`
	Section    string   `json:"section,omitempty"`
	Highlight  string   `json:"highlight,omitempty"`
	Body       string   `json:"body,omitempty"`
	Objectives []string `json:"objectives,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	LessonType string   `json:"lesson_type,omitempty"`
}

// AnswerRequest is one conversation turn handed to the gateway.
type AnswerRequest struct {
	Provider     string        `json:"provider,omitempty"`
	Question     string        `json:"question"`
	SystemPrompt string        `json:"system_prompt,omitempty"`
	Lesson       LessonContext `json:"lesson"`
	History      []Message     `json:"history,omitempty"`
	Temperature  float64       `json:"temperature,omitempty"`
	TopP         float64       `json:"top_p,omitempty"`
	NoCache      bool          `json:"no_cache,omitempty"`

	// MaxRetries overrides the gateway retry budget: 0 uses the
	// configured default, negative disables retries.
	MaxRetries int `json:"max_retries,omitempty"`
}

// AnswerResult is the aggregated outcome of a full answer cycle.
type AnswerResult struct {
	Answer      string   `json:"answer"`
	Usage       Usage    `json:"usage"`
	Provider    string   `json:"provider"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// CacheEntry is an immutable cached answer.
type CacheEntry struct {
	Answer   string    `json:"answer"`
	Usage    *Usage    `json:"usage,omitempty"`
	CachedAt time.Time `json:"cached_at"`
	NoCache  bool      `json:"no_cache,omitempty"`
}

// EventType identifies an outbound gateway event.
type EventType string

// Outbound event sequence: start, token*, end, suggestions -- or
// start, error. The shape is identical whether the answer came from a
// live provider, a cache replay, or the deterministic fallback.
const (
	EventStart       EventType = "start"
	EventToken       EventType = "token"
	EventEnd         EventType = "end"
	EventSuggestions EventType = "suggestions"
	EventError       EventType = "error"
)

// Event is one element of the outbound answer stream. Error events carry
// the taxonomy kind and an HTTP-status equivalent for upstream mapping.
type Event struct {
	Type        EventType `json:"type"`
	Delta       string    `json:"delta,omitempty"`
	Usage       *Usage    `json:"usage,omitempty"`
	Suggestions []string  `json:"suggestions,omitempty"`
	Message     string    `json:"message,omitempty"`
	Code        ErrorKind `json:"code,omitempty"`
	Status      int       `json:"status,omitempty"`
}

// historyKeepRecent is how many trailing turns survive trimming, in
// addition to the very first turn.
const historyKeepRecent = 19

// TrimHistory bounds conversation history to the first turn plus the most
// recent turns before it is sent upstream.
func TrimHistory(history []Message) []Message {
	if len(history) <= historyKeepRecent+1 {
		return history
	}

	trimmed := make([]Message, 0, historyKeepRecent+1)
	trimmed = append(trimmed, history[0])
	trimmed = append(trimmed, history[len(history)-historyKeepRecent:]...)
	return trimmed
}
