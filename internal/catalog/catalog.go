// Package catalog loads the read-only product and knowledge catalogs.
//
// Catalogs are loaded once per process and never mutated afterwards, so
// callers may hold returned slices across requests without copying.
package catalog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/shopmate-labs/shopmate/internal/domain"
)

// Catalog holds the immutable product and knowledge collections.
type Catalog struct {
	products  []domain.Product
	knowledge []domain.KnowledgeItem
}

// rawProduct tolerates the loose feed format: price may be a number, a
// formatted string ("$1,299.00"), or junk ("N/A").
type rawProduct struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       json.RawMessage `json:"price"`
	ImageURL    string          `json:"imageUrl"`
	ProductURL  string          `json:"productUrl"`
}

// Load reads both catalogs from JSON files. An empty path yields an
// empty collection rather than an error so the assistant can run
// without one of the feeds.
func Load(productsPath, knowledgePath string) (*Catalog, error) {
	c := &Catalog{}

	if productsPath != "" {
		products, err := loadProducts(productsPath)
		if err != nil {
			return nil, fmt.Errorf("load products: %w", err)
		}
		c.products = products
	}

	if knowledgePath != "" {
		knowledge, err := loadKnowledge(knowledgePath)
		if err != nil {
			return nil, fmt.Errorf("load knowledge: %w", err)
		}
		c.knowledge = knowledge
	}

	slog.Info("Catalogs loaded", "products", len(c.products), "knowledge_items", len(c.knowledge))
	return c, nil
}

func loadProducts(path string) ([]domain.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var raw []rawProduct
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}

	products := make([]domain.Product, 0, len(raw))
	for _, rp := range raw {
		products = append(products, domain.Product{
			Title:       rp.Title,
			Description: rp.Description,
			Price:       ParsePrice(rp.Price),
			ImageURL:    rp.ImageURL,
			ProductURL:  rp.ProductURL,
		})
	}
	return products, nil
}

func loadKnowledge(path string) ([]domain.KnowledgeItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var items []domain.KnowledgeItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode knowledge items: %w", err)
	}

	active := make([]domain.KnowledgeItem, 0, len(items))
	for _, item := range items {
		if item.IsActive {
			active = append(active, item)
		}
	}
	return active, nil
}

// ParsePrice normalizes a raw JSON price value to a non-negative float.
// Unparsable or negative values become 0 rather than an error; the
// relevance engine excludes zero prices from price-range matching.
func ParsePrice(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}

	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		if num < 0 {
			return 0
		}
		return num
	}

	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return 0
	}
	str = strings.TrimSpace(str)
	str = strings.TrimPrefix(str, "$")
	str = strings.ReplaceAll(str, ",", "")
	num, err := strconv.ParseFloat(str, 64)
	if err != nil || num < 0 {
		return 0
	}
	return num
}

// Products returns the immutable product collection.
func (c *Catalog) Products() []domain.Product {
	return c.products
}

// Knowledge returns the active knowledge items.
func (c *Catalog) Knowledge() []domain.KnowledgeItem {
	return c.knowledge
}
