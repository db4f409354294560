package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/config"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/logging"
)

func testOpenAI(t *testing.T, handler http.Handler) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIClient(config.OpenAIConfig{
		APIKey:  "sk-test",
		BaseURL: srv.URL,
		Model:   "gpt-4o-mini",
	}, logging.New(nil, "silent"))
}

func TestChat_TextReply(t *testing.T) {
	c := testOpenAI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req openaiChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.Empty(t, req.ToolChoice, "no tools means no tool_choice")

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message":       map[string]any{"role": "assistant", "content": "জি স্যার"},
				"finish_reason": "stop",
			}},
		})
	}))

	resp, err := c.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "জি স্যার", resp.Content)
	assert.Empty(t, resp.ToolCalls)
}

func TestChat_ToolCallReply(t *testing.T) {
	c := testOpenAI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openaiChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Tools, 1)
		assert.Equal(t, "function", req.Tools[0].Type)
		assert.Equal(t, "auto", req.ToolChoice)

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"role": "assistant", "content": nil,
					"tool_calls": []map[string]any{{
						"id": "call_1", "type": "function",
						"function": map[string]any{"name": "search_products", "arguments": `{"query":"watch"}`},
					}},
				},
				"finish_reason": "tool_calls",
			}},
		})
	}))

	resp, err := c.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "ঘড়ি আছে?"}},
		Tools:    []ToolSpec{{Name: "search_products", Description: "d", Parameters: json.RawMessage(`{}`)}},
	})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "search_products", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"query":"watch"}`, resp.ToolCalls[0].Arguments)
}

func TestChat_RateLimit(t *testing.T) {
	c := testOpenAI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))

	_, err := c.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	assert.True(t, IsRateLimited(err))

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusTooManyRequests, pe.Status)
}

func TestIsRateLimited_OtherErrors(t *testing.T) {
	assert.False(t, IsRateLimited(nil))
	assert.False(t, IsRateLimited(context.DeadlineExceeded))
	assert.False(t, IsRateLimited(&ProviderError{Status: http.StatusInternalServerError}))
}

func TestVision_FallsBackToChat(t *testing.T) {
	c := testOpenAI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/responses" {
			http.Error(w, "not supported", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{"role": "assistant", "content": "একটি কালো স্মার্টওয়াচ"},
			}},
		})
	}))

	text, err := c.Vision(context.Background(), VisionRequest{Prompt: "describe", ImageURL: "https://x/a.jpg"})
	require.NoError(t, err)
	assert.Equal(t, "একটি কালো স্মার্টওয়াচ", text)
}
