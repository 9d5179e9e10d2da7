// Package transport exposes the router over an OpenAI-compatible HTTP
// surface: POST /v1/chat/completions (whole or SSE-streamed), model and
// session administration, health and metrics.
package transport

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionIDHeader carries the session identifier on requests and responses.
const SessionIDHeader = "X-Session-ID"

// ChatMessage is one turn on the wire.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest is the inbound chat completion body. It follows the
// OpenAI shape plus two structured overrides consumed by the tool executor.
type ChatCompletionRequest struct {
	Model    string        `json:"model,omitempty"`
	Messages []ChatMessage `json:"messages"`

	Temperature      *float64           `json:"temperature,omitempty"`
	TopP             *float64           `json:"top_p,omitempty"`
	TopK             *int               `json:"top_k,omitempty"`
	MaxTokens        int                `json:"max_tokens,omitempty"`
	Stop             []string           `json:"stop,omitempty"`
	FrequencyPenalty *float64           `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64           `json:"presence_penalty,omitempty"`
	LogitBias        map[string]float64 `json:"logit_bias,omitempty"`
	Stream           bool               `json:"stream,omitempty"`

	// SessionID pins the request to a conversation. The X-Session-ID
	// header takes precedence when both are set.
	SessionID string `json:"session_id,omitempty"`

	// Namespace and ProjectID override whatever the intent analyzer
	// extracts from the message.
	Namespace string `json:"namespace,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
}

// LastUserMessage returns the content of the most recent user turn.
func (r *ChatCompletionRequest) LastUserMessage() (string, bool) {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == "user" {
			return r.Messages[i].Content, true
		}
	}
	return "", false
}

// ToolInfo is the tool execution metadata attached to a reply.
type ToolInfo struct {
	Name            string `json:"name"`
	Action          string `json:"action,omitempty"`
	Namespace       string `json:"namespace,omitempty"`
	IntegrationMode string `json:"integration_mode"`
	Success         bool   `json:"success"`
}

// ChatCompletionChoice is one completion alternative. The router always
// produces exactly one.
type ChatCompletionChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// Usage is the token accounting block.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionResponse is the whole-reply shape.
type ChatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Model   string                 `json:"model"`
	Choices []ChatCompletionChoice `json:"choices"`
	Usage   *Usage                 `json:"usage,omitempty"`

	ToolInfo *ToolInfo `json:"tool_info,omitempty"`
}

// ChunkDelta is the incremental payload of one streamed event. The
// terminating chunk carries an empty delta, which both omitempty tags
// render as {}.
type ChunkDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// ChunkChoice is one choice of a streamed event. FinishReason stays null
// until the terminating chunk.
type ChunkChoice struct {
	Index        int        `json:"index"`
	Delta        ChunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

// ChatCompletionChunk is one streamed SSE event body.
type ChatCompletionChunk struct {
	ID      string        `json:"id"`
	Object  string        `json:"object"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

// ModelList is the GET /v1/models response.
type ModelList struct {
	Object string      `json:"object"`
	Data   []ModelInfo `json:"data"`
}

// ModelInfo describes one served model.
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// SessionList is the GET /v1/sessions response.
type SessionList struct {
	Sessions []string `json:"sessions"`
	Total    int      `json:"total"`
}

// HealthResponse is the GET /health response.
type HealthResponse struct {
	Status        string          `json:"status"`
	Version       string          `json:"version"`
	Model         string          `json:"model"`
	Sessions      int             `json:"sessions"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Tools         map[string]bool `json:"tools"`
}

// newCompletionID mints an OpenAI-style completion id.
func newCompletionID() string {
	return fmt.Sprintf("chatcmpl-%s", uuid.NewString())
}

func unixNow() int64 {
	return time.Now().Unix()
}
