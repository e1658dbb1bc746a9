package relevance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopmate-labs/shopmate/internal/domain"
)

func sampleCatalog() []domain.Product {
	return []domain.Product{
		{Title: "Classic Leather Watch", Description: "Elegant men's timepiece with leather strap", Price: 249.99},
		{Title: "Rose Gold Women's Watch", Description: "Minimalist watch for women", Price: 89.99},
		{Title: "Canvas Tote Bag", Description: "Everyday casual bag for women", Price: 45.00},
		{Title: "Running Sneakers", Description: "Athletic shoes with breathable mesh", Price: 120.00},
		{Title: "Silver Pendant Necklace", Description: "Delicate jewelry piece", Price: 0}, // price missing in feed
		{Title: "Garden Gnome", Description: "Hand painted ceramic figure", Price: 15.00},
	}
}

func TestParseQuery(t *testing.T) {
	q := ParseQuery("show me women watches under $100")
	assert.Equal(t, "watch", q.Category)
	assert.Equal(t, "women", q.Gender)
	assert.Equal(t, 100.0, q.PriceMax)

	q = ParseQuery("luxury men's bags")
	assert.Equal(t, "bag", q.Category)
	assert.Equal(t, "men", q.Gender)
	assert.Equal(t, "luxury", q.Style)
	assert.Zero(t, q.PriceMax)

	q = ParseQuery("anything for my dog")
	assert.True(t, q.Empty())
}

func TestParseQueryPriceForms(t *testing.T) {
	cases := map[string]float64{
		"under 100":          100,
		"below $250":         250,
		"less than 49.99":    49.99,
		"up to $80":          80,
		"shoes for $ 60":     60,
		"no price mentioned": 0,
	}
	for input, want := range cases {
		assert.Equal(t, want, ParseQuery(input).PriceMax, "input %q", input)
	}
}

func TestParseQueryStyleDeterministic(t *testing.T) {
	// "classic elegant" matches both the formal and vintage keyword
	// lists; detection must land on the same style every time, in the
	// fixed table order.
	first := ParseQuery("a classic elegant watch")
	assert.Equal(t, "formal", first.Style)
	for i := 0; i < 1000; i++ {
		again := ParseQuery("a classic elegant watch")
		require.Equal(t, first, again, "identical utterances must derive identical intents")
	}
}

func TestGenderWholeWordMatch(t *testing.T) {
	// "women" contains "men" as a substring; token matching must not
	// misclassify.
	assert.Equal(t, "women", ParseQuery("watches for women").Gender)
	assert.Equal(t, "women", ParseQuery("women's jewelry").Gender)
	assert.Equal(t, "men", ParseQuery("watches for men").Gender)
	assert.Equal(t, "", ParseQuery("recommendations please").Gender)
}

func TestRankScoresAndExcludesNonMatches(t *testing.T) {
	e := NewEngine(sampleCatalog())

	matches := e.Rank(QueryIntent{Category: "watch", Gender: "women", PriceMax: 100}, 0)
	require.NotEmpty(t, matches)

	// The women's watch under $100 matches category+gender+price = 4+3+2.
	assert.Equal(t, "Rose Gold Women's Watch", matches[0].Product.Title)
	assert.Equal(t, 9, matches[0].Score)
	assert.ElementsMatch(t, []string{"category", "gender", "price"}, matches[0].MatchedCriteria)

	// Without a price ceiling the gnome matches nothing and is excluded.
	matches = e.Rank(QueryIntent{Category: "watch", Gender: "women"}, 0)
	require.NotEmpty(t, matches)
	for _, m := range matches {
		assert.NotEqual(t, "Garden Gnome", m.Product.Title, "zero-score products must be excluded")
		assert.Greater(t, m.Score, 0)
	}
}

func TestRankZeroPriceNeverMatchesPriceCriterion(t *testing.T) {
	e := NewEngine(sampleCatalog())

	matches := e.Rank(QueryIntent{Category: "jewelry", PriceMax: 500}, 0)
	require.Len(t, matches, 1)
	assert.Equal(t, "Silver Pendant Necklace", matches[0].Product.Title)
	assert.NotContains(t, matches[0].MatchedCriteria, "price")
	assert.Equal(t, categoryWeight, matches[0].Score)
}

func TestRankDeterministicWithStableTies(t *testing.T) {
	products := []domain.Product{
		{Title: "Watch Alpha", Description: "watch", Price: 50},
		{Title: "Watch Beta", Description: "watch", Price: 60},
		{Title: "Watch Gamma", Description: "watch", Price: 70},
	}
	e := NewEngine(products)
	intent := QueryIntent{Category: "watch"}

	first := e.Rank(intent, 0)
	for i := 0; i < 10; i++ {
		again := e.Rank(intent, 0)
		require.Equal(t, first, again, "identical inputs must rank identically")
	}

	// All three tie on score; catalog order is preserved.
	require.Len(t, first, 3)
	assert.Equal(t, "Watch Alpha", first[0].Product.Title)
	assert.Equal(t, "Watch Beta", first[1].Product.Title)
	assert.Equal(t, "Watch Gamma", first[2].Product.Title)
}

func TestRankTopKLimit(t *testing.T) {
	var products []domain.Product
	for i := 0; i < 20; i++ {
		products = append(products, domain.Product{Title: "Watch", Description: "watch", Price: 10})
	}
	e := NewEngine(products)

	assert.Len(t, e.Rank(QueryIntent{Category: "watch"}, 3), 3)
	assert.Len(t, e.Rank(QueryIntent{Category: "watch"}, 0), DefaultTopK)
}
