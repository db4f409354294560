package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/config"
	"github.com/Sohagsrz/chatbot-for-wp-product-bangla/internal/logging"
)

// OpenAIClient is a direct HTTP client for the OpenAI API.
type OpenAIClient struct {
	baseURL     string
	apiKey      string
	model       string
	visionModel string
	client      *http.Client
	log         *logging.Logger
}

// NewOpenAIClient creates a client from config. Call timeouts come from
// the caller's context; the HTTP client timeout is only a safety net.
func NewOpenAIClient(cfg config.OpenAIConfig, log *logging.Logger) *OpenAIClient {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	visionModel := cfg.VisionModel
	if visionModel == "" {
		visionModel = cfg.Model
	}
	return &OpenAIClient{
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		visionModel: visionModel,
		client:      &http.Client{Timeout: 60 * time.Second},
		log:         log.Sub("llm"),
	}
}

// Name returns the provider name.
func (o *OpenAIClient) Name() string { return "openai" }

// openaiTool wraps a ToolSpec in the function-call envelope.
type openaiTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Parameters  json.RawMessage `json:"parameters"`
	} `json:"function"`
}

type openaiMessage struct {
	Role       string           `json:"role"`
	Content    any              `json:"content"`
	ToolCalls  []openaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	Name       string           `json:"name,omitempty"`
}

type openaiToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type openaiChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	Tools       []openaiTool    `json:"tools,omitempty"`
	ToolChoice  string          `json:"tool_choice,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
}

type openaiChatResponse struct {
	Choices []struct {
		Message      openaiMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
}

// Chat sends a chat-completions request with optional tools.
func (o *OpenAIClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	body := openaiChatRequest{
		Model:       o.model,
		Messages:    make([]openaiMessage, 0, len(req.Messages)),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	for _, m := range req.Messages {
		om := openaiMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
			Name:       m.Name,
		}
		for _, tc := range m.ToolCalls {
			otc := openaiToolCall{ID: tc.ID, Type: "function"}
			otc.Function.Name = tc.Name
			otc.Function.Arguments = tc.Arguments
			om.ToolCalls = append(om.ToolCalls, otc)
		}
		body.Messages = append(body.Messages, om)
	}
	for _, t := range req.Tools {
		ot := openaiTool{Type: "function"}
		ot.Function.Name = t.Name
		ot.Function.Description = t.Description
		ot.Function.Parameters = t.Parameters
		body.Tools = append(body.Tools, ot)
	}
	if len(body.Tools) > 0 {
		body.ToolChoice = "auto"
	}

	var result openaiChatResponse
	if err := o.post(ctx, "/chat/completions", body, &result); err != nil {
		return nil, err
	}
	if len(result.Choices) == 0 {
		return nil, &ProviderError{Provider: o.Name(), Status: http.StatusOK, Message: "empty choices"}
	}

	choice := result.Choices[0]
	resp := &ChatResponse{FinishReason: choice.FinishReason}
	if s, ok := choice.Message.Content.(string); ok {
		resp.Content = s
	}
	for _, tc := range choice.Message.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return resp, nil
}

// Vision describes an image. The responses endpoint is tried first; on
// any failure the call falls back to chat completions with image parts.
func (o *OpenAIClient) Vision(ctx context.Context, req VisionRequest) (string, error) {
	if text, err := o.visionResponses(ctx, req); err == nil && text != "" {
		return text, nil
	}
	return o.visionChat(ctx, req)
}

func (o *OpenAIClient) visionResponses(ctx context.Context, req VisionRequest) (string, error) {
	input := make([]map[string]any, 0, 2)
	if req.System != "" {
		input = append(input, map[string]any{
			"role": RoleSystem,
			"content": []map[string]any{
				{"type": "input_text", "text": req.System},
			},
		})
	}
	input = append(input, map[string]any{
		"role": RoleUser,
		"content": []map[string]any{
			{"type": "input_text", "text": req.Prompt},
			{"type": "input_image", "image_url": req.ImageURL},
		},
	})
	body := map[string]any{
		"model": o.visionModel,
		"input": input,
	}

	var result struct {
		OutputText string `json:"output_text"`
		Output     []struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
	}
	if err := o.post(ctx, "/responses", body, &result); err != nil {
		return "", err
	}
	if result.OutputText != "" {
		return result.OutputText, nil
	}
	for _, out := range result.Output {
		for _, c := range out.Content {
			if c.Type == "output_text" && c.Text != "" {
				return c.Text, nil
			}
		}
	}
	return "", fmt.Errorf("vision: empty response")
}

func (o *OpenAIClient) visionChat(ctx context.Context, req VisionRequest) (string, error) {
	messages := make([]map[string]any, 0, 2)
	if req.System != "" {
		messages = append(messages, map[string]any{"role": RoleSystem, "content": req.System})
	}
	messages = append(messages, map[string]any{
		"role": RoleUser,
		"content": []map[string]any{
			{"type": "text", "text": req.Prompt},
			{"type": "image_url", "image_url": map[string]string{"url": req.ImageURL}},
		},
	})
	body := map[string]any{
		"model":      o.visionModel,
		"messages":   messages,
		"max_tokens": 300,
	}

	var result openaiChatResponse
	if err := o.post(ctx, "/chat/completions", body, &result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("vision: empty choices")
	}
	if s, ok := result.Choices[0].Message.Content.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("vision: no text content")
}

func (o *OpenAIClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		o.log.Warn().Int("status", resp.StatusCode).Str("path", path).Msg("provider error")
		return &ProviderError{
			Provider: o.Name(),
			Status:   resp.StatusCode,
			Message:  truncate(string(respBody), 300),
		}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
