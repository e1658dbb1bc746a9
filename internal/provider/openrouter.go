package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/shopmate-labs/shopmate/internal/domain"
)

const openRouterEndpoint = "https://openrouter.ai/api/v1/chat/completions"

// OpenRouterProvider calls OpenRouter's OpenAI-compatible chat
// completions endpoint directly.
type OpenRouterProvider struct {
	apiKey string
	model  string
	client *http.Client
}

// NewOpenRouter creates an OpenRouter-backed provider.
func NewOpenRouter(apiKey, model string, timeout time.Duration) *OpenRouterProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenRouterProvider{
		apiKey: apiKey,
		model:  model,
		client: &http.Client{Timeout: timeout},
	}
}

type openRouterMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterRequest struct {
	Model    string              `json:"model"`
	Messages []openRouterMessage `json:"messages"`
}

type openRouterResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate produces a completion for the conversation.
func (p *OpenRouterProvider) Generate(ctx context.Context, messages []domain.Message, systemPrompt string) (string, error) {
	apiMsgs := make([]openRouterMessage, 0, len(messages)+1)
	if systemPrompt != "" {
		apiMsgs = append(apiMsgs, openRouterMessage{Role: "system", Content: systemPrompt})
	}
	for _, m := range messages {
		apiMsgs = append(apiMsgs, openRouterMessage{Role: string(m.Role), Content: m.Content})
	}

	body, err := json.Marshal(openRouterRequest{Model: p.model, Messages: apiMsgs})
	if err != nil {
		return "", errors.Wrap(err, "encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openRouterEndpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "openrouter request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("openrouter returned status %d", resp.StatusCode)
	}

	var apiResp openRouterResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", errors.Wrap(err, "decode response")
	}
	if len(apiResp.Choices) == 0 {
		return "", errors.New("openrouter returned no choices")
	}
	return apiResp.Choices[0].Message.Content, nil
}

// TestConnection issues a minimal completion to verify reachability.
func (p *OpenRouterProvider) TestConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := p.Generate(ctx, []domain.Message{{Role: domain.RoleUser, Content: "ping"}}, "")
	return err == nil
}

// Name identifies the adapter.
func (p *OpenRouterProvider) Name() string {
	return "openrouter/" + p.model
}
