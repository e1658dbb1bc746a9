package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrice(t *testing.T) {
	cases := map[string]float64{
		`129.99`:       129.99,
		`0`:            0,
		`"49.50"`:      49.50,
		`"$1,299.00"`:  1299,
		`" $85 "`:      85,
		`"N/A"`:        0,
		`""`:           0,
		`-10`:          0,
		`"-10"`:        0,
		`null`:         0,
		`{"amt": 5}`:   0,
	}
	for raw, want := range cases {
		assert.Equal(t, want, ParsePrice(json.RawMessage(raw)), "raw %s", raw)
	}
	assert.Zero(t, ParsePrice(nil))
}

func TestLoadProductsToleratesLooseFeed(t *testing.T) {
	dir := t.TempDir()
	productsPath := filepath.Join(dir, "products.json")
	feed := `[
		{"title": "Leather Watch", "description": "Classic timepiece", "price": 249.99, "imageUrl": "https://cdn.example/w.jpg", "productUrl": "https://shop.example/w"},
		{"title": "Canvas Bag", "description": "Roomy tote", "price": "$45.00"},
		{"title": "Mystery Item", "description": "No price listed", "price": "N/A"}
	]`
	require.NoError(t, os.WriteFile(productsPath, []byte(feed), 0o644))

	c, err := Load(productsPath, "")
	require.NoError(t, err)

	products := c.Products()
	require.Len(t, products, 3)
	assert.Equal(t, 249.99, products[0].Price)
	assert.Equal(t, 45.0, products[1].Price)
	assert.Zero(t, products[2].Price)
	assert.Equal(t, "Leather Watch", products[0].Title)
}

func TestLoadKnowledgeFiltersInactive(t *testing.T) {
	dir := t.TempDir()
	knowledgePath := filepath.Join(dir, "knowledge.json")
	feed := `[
		{"title": "Returns Policy", "content": "30 day returns", "type": "policy", "isActive": true},
		{"title": "Old Promo", "content": "expired", "type": "faq", "isActive": false}
	]`
	require.NoError(t, os.WriteFile(knowledgePath, []byte(feed), 0o644))

	c, err := Load("", knowledgePath)
	require.NoError(t, err)

	items := c.Knowledge()
	require.Len(t, items, 1)
	assert.Equal(t, "Returns Policy", items[0].Title)
}

func TestLoadEmptyPathsYieldEmptyCatalog(t *testing.T) {
	c, err := Load("", "")
	require.NoError(t, err)
	assert.Empty(t, c.Products())
	assert.Empty(t, c.Knowledge())
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"), "")
	assert.Error(t, err)
}
