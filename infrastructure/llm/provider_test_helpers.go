package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/veridoc/veridoc/internal/ports"
)

// MockProvider implements CoreLLM for testing middleware and client
// behavior without reaching a real API.
type MockProvider struct {
	mu            sync.Mutex
	model         string
	DoRequestFunc func(ctx context.Context, req ports.ChatRequest) (string, int, int, error)
	Requests      []ports.ChatRequest
}

// NewMockProvider creates a mock provider with a default echo behavior.
func NewMockProvider(model string) *MockProvider {
	return &MockProvider{
		model: model,
		DoRequestFunc: func(_ context.Context, req ports.ChatRequest) (string, int, int, error) {
			return fmt.Sprintf("mock response to: %s", req.Prompt), 10, 5, nil
		},
	}
}

func (m *MockProvider) DoRequest(ctx context.Context, req ports.ChatRequest) (string, int, int, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	fn := m.DoRequestFunc
	m.mu.Unlock()
	return fn(ctx, req)
}

func (m *MockProvider) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.model
}

func (m *MockProvider) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.model = model
}

// RequestCount returns how many requests the mock has served.
func (m *MockProvider) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// GetProviderFactory returns the registered factory for a provider type,
// letting tests construct providers the same way NewClient does.
func GetProviderFactory(providerType string) (ProviderFactory, bool) {
	factory, ok := providerFactories[providerType]
	return factory, ok
}
