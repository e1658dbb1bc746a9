// Package intent classifies user utterances into a closed set of intents.
package intent

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/shopmate-labs/shopmate/internal/domain"
	"github.com/shopmate-labs/shopmate/internal/provider"
)

// Intent is the classified purpose of an utterance.
type Intent string

const (
	IntentOrderTracking Intent = "order_tracking"
	IntentProductSearch Intent = "product_search"
	IntentGeneralChat   Intent = "general_chat"
)

// Result is the classification output.
type Result struct {
	Intent                 Intent  `json:"intent"`
	Confidence             float64 `json:"confidence"`
	ShouldStartProductFlow bool    `json:"shouldStartProductFlow"`
}

// orderKeywords trigger the deterministic order-tracking fast path.
var orderKeywords = []string{
	"order", "track", "shipping", "delivery", "package", "status", "where is my",
}

const classifySystemPrompt = `You classify a shopping-assistant user message.
Respond with JSON only, no prose, using exactly this schema:
{"intent": "order_tracking" | "product_search" | "general_chat", "confidence": <number 0..1>, "shouldStartProductFlow": <bool>}
Set shouldStartProductFlow to true when the user wants product recommendations but has not described what they are looking for yet.`

// Classifier maps utterances to intents. The keyword fast path is
// checked first; everything else is delegated to the language model.
type Classifier struct {
	provider provider.Provider
}

// NewClassifier creates a classifier backed by the given provider.
func NewClassifier(p provider.Provider) *Classifier {
	return &Classifier{provider: p}
}

// Classify determines the intent of an utterance. midFlow suppresses
// the keyword fast path so slot answers like "order it in black" do not
// hijack an active dialogue. Classification never returns an error:
// any model failure degrades to general_chat with confidence 0.
func (c *Classifier) Classify(ctx context.Context, utterance string, midFlow bool) Result {
	if !midFlow && matchesOrderKeyword(utterance) {
		return Result{Intent: IntentOrderTracking, Confidence: 1}
	}

	raw, err := c.provider.Generate(ctx,
		[]domain.Message{{Role: domain.RoleUser, Content: utterance}},
		classifySystemPrompt,
	)
	if err != nil {
		slog.Warn("intent classification call failed, falling back to general_chat", "error", err)
		return Result{Intent: IntentGeneralChat, Confidence: 0}
	}

	result, ok := parseResult(raw)
	if !ok {
		slog.Warn("intent classification returned unparsable output, falling back to general_chat",
			"output_length", len(raw))
		return Result{Intent: IntentGeneralChat, Confidence: 0}
	}
	return result
}

func matchesOrderKeyword(utterance string) bool {
	text := strings.ToLower(utterance)
	for _, kw := range orderKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// parseResult decodes and validates the model's JSON. Models sometimes
// wrap JSON in code fences; strip those before decoding.
func parseResult(raw string) (Result, bool) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var result Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return Result{}, false
	}

	switch result.Intent {
	case IntentOrderTracking, IntentProductSearch, IntentGeneralChat:
	default:
		return Result{}, false
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		return Result{}, false
	}
	return result, true
}
