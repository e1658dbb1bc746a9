package assistant

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopmate-labs/shopmate/internal/domain"
	"github.com/shopmate-labs/shopmate/internal/relevance"
)

func testKnowledge() []domain.KnowledgeItem {
	return []domain.KnowledgeItem{
		{Title: "Returns Policy", Content: "You can return any item within 30 days for a full refund.", Type: "policy", SourceURL: "https://shop.example/returns"},
		{Title: "Shipping Times", Content: "Standard shipping takes 3-5 business days within the country.", Type: "faq"},
		{Title: "Gift Wrapping", Content: "Gift wrapping is available at checkout for a small fee.", Type: "faq"},
	}
}

func TestRetrieveKnowledgeRanksByOverlap(t *testing.T) {
	a := NewAssembler(DefaultAssemblerConfig(), testKnowledge())

	hits := a.RetrieveKnowledge("can I return an item for a refund?")
	require.NotEmpty(t, hits)
	assert.Equal(t, "Returns Policy", hits[0].Item.Title)
	for _, h := range hits {
		assert.Greater(t, h.Score, 0, "zero-overlap items must not be retrieved")
	}
}

func TestRetrieveKnowledgeTopK(t *testing.T) {
	cfg := DefaultAssemblerConfig()
	cfg.KnowledgeTopK = 1
	a := NewAssembler(cfg, testKnowledge())

	hits := a.RetrieveKnowledge("return refund shipping gift days item")
	assert.Len(t, hits, 1)
}

func TestRetrieveKnowledgeEmptyQuery(t *testing.T) {
	a := NewAssembler(DefaultAssemblerConfig(), testKnowledge())
	assert.Empty(t, a.RetrieveKnowledge("a an it"))
}

func TestBuildDropsOversizedSections(t *testing.T) {
	huge := strings.Repeat("return policy words and more words ", 2000)
	knowledge := []domain.KnowledgeItem{
		{Title: "Huge Policy", Content: huge},
		{Title: "Tiny Note", Content: "We ship worldwide."},
	}
	cfg := AssemblerConfig{TokenBudget: 400, HistoryTurns: 10, KnowledgeTopK: 5}
	a := NewAssembler(cfg, knowledge)

	hits := []KnowledgeHit{
		{Item: knowledge[0], Score: 5},
		{Item: knowledge[1], Score: 1},
	}
	products := []relevance.Match{
		{Product: domain.Product{Title: "Leather Watch", Price: 120}, Score: 6},
	}
	recent := []domain.Message{
		{Role: domain.RoleUser, Content: "hi"},
		{Role: domain.RoleAssistant, Content: "hello"},
	}

	kept, systemPrompt := a.Build(recent, hits, products)

	// The oversized snippet is skipped whole; smaller sections survive.
	assert.NotContains(t, systemPrompt, "Huge Policy")
	assert.Contains(t, systemPrompt, "Tiny Note")
	assert.Contains(t, systemPrompt, "Leather Watch")
	assert.Len(t, kept, 2)
}

func TestBuildKeepsNewestTurnsFirst(t *testing.T) {
	huge := strings.Repeat("many words in an old rambling message ", 2000)
	cfg := AssemblerConfig{TokenBudget: 400, HistoryTurns: 10, KnowledgeTopK: 5}
	a := NewAssembler(cfg, nil)

	recent := []domain.Message{
		{Role: domain.RoleUser, Content: huge},
		{Role: domain.RoleAssistant, Content: "short answer"},
		{Role: domain.RoleUser, Content: "what about shipping?"},
	}

	kept, _ := a.Build(recent, nil, nil)

	// Newest messages fit; the oversized oldest one is cut along with
	// everything before it.
	require.Len(t, kept, 2)
	assert.Equal(t, "short answer", kept[0].Content)
	assert.Equal(t, "what about shipping?", kept[1].Content)
}

func TestBuildRespectsHistoryTurnsCap(t *testing.T) {
	cfg := AssemblerConfig{TokenBudget: 3000, HistoryTurns: 2, KnowledgeTopK: 5}
	a := NewAssembler(cfg, nil)

	recent := []domain.Message{
		{Role: domain.RoleUser, Content: "one"},
		{Role: domain.RoleAssistant, Content: "two"},
		{Role: domain.RoleUser, Content: "three"},
	}
	kept, _ := a.Build(recent, nil, nil)
	require.Len(t, kept, 2)
	assert.Equal(t, "two", kept[0].Content)
}

func TestParseModelReply(t *testing.T) {
	reply := ParseModelReply(`{"message": "Happy to help!", "shouldStartProductFlow": true, "confidence": 0.85}`)
	assert.Equal(t, "Happy to help!", reply.Message)
	assert.True(t, reply.ShouldStartProductFlow)
	assert.Equal(t, 0.85, reply.Confidence)

	reply = ParseModelReply("```json\n{\"message\": \"Fenced.\", \"confidence\": 0.5}\n```")
	assert.Equal(t, "Fenced.", reply.Message)

	// Out-of-range confidence is zeroed, not rejected.
	reply = ParseModelReply(`{"message": "odd", "confidence": 9}`)
	assert.Equal(t, "odd", reply.Message)
	assert.Zero(t, reply.Confidence)
}

func TestParseModelReplyProseShim(t *testing.T) {
	raw := "Sure, our returns window is 30 days."
	reply := ParseModelReply(raw)
	assert.Equal(t, raw, reply.Message)
	assert.False(t, reply.ShouldStartProductFlow)
	assert.Equal(t, 0.5, reply.Confidence)
}
