package provider

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/shopmate-labs/shopmate/internal/domain"
)

// OpenAIProvider generates completions through the OpenAI API using
// langchaingo's client.
type OpenAIProvider struct {
	llm   *openai.LLM
	model string
}

// NewOpenAI creates an OpenAI-backed provider.
func NewOpenAI(apiKey, model string) (*OpenAIProvider, error) {
	llm, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create openai client")
	}
	return &OpenAIProvider{llm: llm, model: model}, nil
}

// Generate produces a completion for the conversation.
func (p *OpenAIProvider) Generate(ctx context.Context, messages []domain.Message, systemPrompt string) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages)+1)
	if systemPrompt != "" {
		content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	}
	for _, m := range messages {
		role := llms.ChatMessageTypeHuman
		if m.Role == domain.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(role, m.Content))
	}

	resp, err := p.llm.GenerateContent(ctx, content)
	if err != nil {
		return "", errors.Wrap(err, "openai generate")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return resp.Choices[0].Content, nil
}

// TestConnection issues a minimal completion to verify reachability.
func (p *OpenAIProvider) TestConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := p.Generate(ctx, []domain.Message{{Role: domain.RoleUser, Content: "ping"}}, "")
	return err == nil
}

// Name identifies the adapter.
func (p *OpenAIProvider) Name() string {
	return "openai/" + p.model
}
