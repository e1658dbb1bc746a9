package assistant

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/shopmate-labs/shopmate/internal/domain"
	"github.com/shopmate-labs/shopmate/internal/relevance"
)

const systemInstructions = `You are a friendly shopping assistant for an online boutique.
Answer customer questions using the provided store knowledge when it is relevant, and never invent order details or prices.
Respond with JSON only, using exactly this schema:
{"message": "<your reply to the customer>", "shouldStartProductFlow": <bool>, "confidence": <number 0..1>}
Set shouldStartProductFlow to true only when the customer wants product recommendations but has not said what they are looking for.`

// KnowledgeHit pairs a knowledge item with its overlap score.
type KnowledgeHit struct {
	Item  domain.KnowledgeItem
	Score int
}

// ModelReply is the structured payload the model is instructed to
// return.
type ModelReply struct {
	Message                string  `json:"message"`
	ShouldStartProductFlow bool    `json:"shouldStartProductFlow"`
	Confidence             float64 `json:"confidence"`
}

// AssemblerConfig bounds the assembled context.
type AssemblerConfig struct {
	TokenBudget   int // total budget for the prompt, in tokens
	HistoryTurns  int // max recent conversation turns included
	KnowledgeTopK int
}

// DefaultAssemblerConfig returns the production defaults.
func DefaultAssemblerConfig() AssemblerConfig {
	return AssemblerConfig{
		TokenBudget:   3000,
		HistoryTurns:  10,
		KnowledgeTopK: 5,
	}
}

// Assembler builds one bounded prompt per turn.
type Assembler struct {
	cfg       AssemblerConfig
	knowledge []domain.KnowledgeItem
	encoder   *tiktoken.Tiktoken
}

// NewAssembler creates an assembler over the read-only knowledge
// catalog. Token counting falls back to a length heuristic when the
// encoding cannot be loaded.
func NewAssembler(cfg AssemblerConfig, knowledge []domain.KnowledgeItem) *Assembler {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		enc = nil
	}
	return &Assembler{cfg: cfg, knowledge: knowledge, encoder: enc}
}

func (a *Assembler) countTokens(s string) int {
	if a.encoder == nil {
		return len(s) / 4
	}
	return len(a.encoder.Encode(s, nil, nil))
}

// RetrieveKnowledge scores each knowledge item by token overlap with
// the utterance and returns the top-K hits with a non-zero score, in
// descending score order with catalog order breaking ties.
func (a *Assembler) RetrieveKnowledge(utterance string) []KnowledgeHit {
	queryTokens := overlapTokens(utterance)
	if len(queryTokens) == 0 {
		return nil
	}

	hits := make([]KnowledgeHit, 0, len(a.knowledge))
	for _, item := range a.knowledge {
		itemTokens := overlapTokens(item.Title + " " + item.Content)
		score := 0
		for tok := range queryTokens {
			if itemTokens[tok] {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, KnowledgeHit{Item: item, Score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > a.cfg.KnowledgeTopK {
		hits = hits[:a.cfg.KnowledgeTopK]
	}
	return hits
}

// overlapTokens lowercases and splits text into a word set, dropping
// short stop-ish words that would inflate every score.
func overlapTokens(text string) map[string]bool {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]bool, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,!?\"'()[]{}:;")
		if len(w) < 3 {
			continue
		}
		set[w] = true
	}
	return set
}

// Build assembles the prompt for one turn. Sections are added in fixed
// priority order within the token budget: system instructions, then
// the most recent conversation turns, then knowledge snippets, then
// product summaries. Lower-priority sections are dropped first when
// the budget is exceeded.
func (a *Assembler) Build(recent []domain.Message, hits []KnowledgeHit, products []relevance.Match) (messages []domain.Message, systemPrompt string) {
	budget := a.cfg.TokenBudget
	var sb strings.Builder
	sb.WriteString(systemInstructions)
	budget -= a.countTokens(systemInstructions)

	// Recent turns, newest kept preferentially.
	turns := recent
	if len(turns) > a.cfg.HistoryTurns {
		turns = turns[len(turns)-a.cfg.HistoryTurns:]
	}
	var kept []domain.Message
	for i := len(turns) - 1; i >= 0; i-- {
		cost := a.countTokens(turns[i].Content)
		if cost > budget {
			break
		}
		budget -= cost
		kept = append([]domain.Message{turns[i]}, kept...)
	}

	// Knowledge snippets, highest score first, each dropped whole when
	// it does not fit.
	var knowledgeSection strings.Builder
	for _, hit := range hits {
		snippet := fmt.Sprintf("- %s: %s\n", hit.Item.Title, hit.Item.Content)
		cost := a.countTokens(snippet)
		if cost > budget {
			continue
		}
		budget -= cost
		knowledgeSection.WriteString(snippet)
	}
	if knowledgeSection.Len() > 0 {
		sb.WriteString("\n\nStore knowledge:\n")
		sb.WriteString(knowledgeSection.String())
	}

	// Product summaries are the lowest-priority section.
	var productSection strings.Builder
	for _, match := range products {
		summary := fmt.Sprintf("- %s ($%.2f)\n", match.Product.Title, match.Product.Price)
		cost := a.countTokens(summary)
		if cost > budget {
			continue
		}
		budget -= cost
		productSection.WriteString(summary)
	}
	if productSection.Len() > 0 {
		sb.WriteString("\nMatching products:\n")
		sb.WriteString(productSection.String())
	}

	return kept, sb.String()
}

// ParseModelReply decodes the structured model payload. A prose reply
// that is not valid JSON is accepted through a legacy shim wrapping it
// as message-only, so older prompt formats keep working.
func ParseModelReply(raw string) ModelReply {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var reply ModelReply
	if err := json.Unmarshal([]byte(trimmed), &reply); err == nil && reply.Message != "" {
		if reply.Confidence < 0 || reply.Confidence > 1 {
			reply.Confidence = 0
		}
		return reply
	}

	// Legacy shim: treat the whole output as the reply text.
	return ModelReply{Message: raw, Confidence: 0.5}
}
