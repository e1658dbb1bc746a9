package provider

import (
	"context"
	"sync"

	"github.com/shopmate-labs/shopmate/internal/domain"
)

// MockProvider returns scripted responses in order, then repeats the
// last one. Used in tests and for running the server without an API key.
type MockProvider struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     int

	// LastMessages and LastSystemPrompt record the most recent Generate
	// input for assertions.
	LastMessages     []domain.Message
	LastSystemPrompt string
}

// NewMock creates a mock provider with scripted responses.
func NewMock(responses ...string) *MockProvider {
	if len(responses) == 0 {
		responses = []string{`{"message": "Hello! How can I help you today?", "shouldStartProductFlow": false, "confidence": 0.9}`}
	}
	return &MockProvider{responses: responses}
}

// FailWith makes every Generate call return err.
func (p *MockProvider) FailWith(err error) *MockProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errs = []error{err}
	return p
}

// Generate returns the next scripted response.
func (p *MockProvider) Generate(ctx context.Context, messages []domain.Message, systemPrompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.LastMessages = append([]domain.Message(nil), messages...)
	p.LastSystemPrompt = systemPrompt

	if len(p.errs) > 0 {
		return "", p.errs[0]
	}

	idx := p.calls
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	p.calls++
	return p.responses[idx], nil
}

// Calls returns how many times Generate has been invoked.
func (p *MockProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// TestConnection always succeeds for the mock.
func (p *MockProvider) TestConnection(ctx context.Context) bool {
	return true
}

// Name identifies the adapter.
func (p *MockProvider) Name() string {
	return "mock"
}
