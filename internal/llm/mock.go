package llm

import "context"

// MockClient is a test double for Client.
type MockClient struct {
	ProviderName string
	ChatFunc     func(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	VisionFunc   func(ctx context.Context, req VisionRequest) (string, error)

	// ChatCalls records every request passed to Chat.
	ChatCalls []ChatRequest
}

func (m *MockClient) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

func (m *MockClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	m.ChatCalls = append(m.ChatCalls, req)
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	return &ChatResponse{Content: "mock response"}, nil
}

func (m *MockClient) Vision(ctx context.Context, req VisionRequest) (string, error) {
	if m.VisionFunc != nil {
		return m.VisionFunc(ctx, req)
	}
	return "mock vision description", nil
}
