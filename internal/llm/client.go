// Package llm defines the model client interface and the OpenAI-backed
// implementation used for tool-calling conversations.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Role constants for messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Message is a single turn in a conversation, in provider wire shape.
// Assistant turns may carry tool calls; tool turns answer them by id.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolCall is a model request to invoke a tool.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON string
}

// ToolSpec describes a tool the model may invoke.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"` // JSON Schema
}

// ChatRequest is the input to a Chat call.
type ChatRequest struct {
	Messages    []Message  `json:"messages"`
	Tools       []ToolSpec `json:"tools,omitempty"`
	MaxTokens   int        `json:"maxTokens,omitempty"`
	Temperature *float64   `json:"temperature,omitempty"`
}

// ChatResponse is the result of a Chat call.
type ChatResponse struct {
	Content      string     `json:"content"`
	ToolCalls    []ToolCall `json:"toolCalls,omitempty"`
	FinishReason string     `json:"finishReason,omitempty"`
}

// VisionRequest asks the model to describe an image for a shopper.
type VisionRequest struct {
	System   string `json:"system,omitempty"`
	Prompt   string `json:"prompt"`
	ImageURL string `json:"imageUrl"` // https URL or data URL
}

// Client is the interface the conversation engine talks to.
type Client interface {
	// Chat sends a conversation and returns the model's reply, which
	// may be text, tool calls, or both.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Vision describes an image in the context of the given prompt.
	Vision(ctx context.Context, req VisionRequest) (string, error)

	// Name returns the provider name.
	Name() string
}

// ProviderError is a non-2xx response from a model provider.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.Status, e.Message)
}

// IsRateLimited reports whether err is a provider rate-limit rejection.
func IsRateLimited(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Status == http.StatusTooManyRequests
}
