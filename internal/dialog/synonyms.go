package dialog

import (
	"strings"

	"github.com/shopmate-labs/shopmate/internal/domain"
)

// Synonym tables mapping loose user phrases to canonical slot values.
// Matching is substring-based over the lowercased utterance, so "pretty
// cheap please" still lands on budget-friendly.

var categorySynonyms = map[string][]string{
	"watch":      {"watch", "watches", "timepiece", "chronograph"},
	"bag":        {"bag", "bags", "handbag", "backpack", "purse", "tote"},
	"shoes":      {"shoe", "shoes", "sneaker", "boot", "heel", "sandal"},
	"jewelry":    {"jewelry", "jewellery", "necklace", "bracelet", "ring", "earring"},
	"sunglasses": {"sunglasses", "shades", "eyewear"},
	"wallet":     {"wallet", "cardholder"},
	"perfume":    {"perfume", "fragrance", "cologne"},
	"clothing":   {"clothing", "clothes", "apparel", "shirt", "dress", "jacket"},
}

var budgetSynonyms = map[domain.Budget][]string{
	domain.BudgetFriendly: {"cheap", "affordable", "low", "budget", "inexpensive"},
	domain.BudgetMidRange: {"mid", "moderate", "middle", "average", "medium"},
	domain.BudgetPremium:  {"premium", "expensive", "luxury", "high end", "high-end", "top"},
	domain.BudgetAny:      {"any", "no preference", "don't care", "dont care", "doesn't matter", "doesnt matter", "whatever"},
}

var sortSynonyms = map[domain.SortOrder][]string{
	domain.SortPriceLow:   {"cheapest", "low to high", "lowest", "price low"},
	domain.SortPriceHigh:  {"high to low", "most expensive", "highest", "price high"},
	domain.SortPopularity: {"popular", "best selling", "bestselling", "trending"},
}

// categoryOrder fixes synonym lookup order; map iteration would make
// normalization nondeterministic for phrases matching several tables.
var categoryOrder = []string{"watch", "bag", "shoes", "jewelry", "sunglasses", "wallet", "perfume", "clothing"}

// NormalizeCategory maps a loose category phrase to its canonical
// value, or "" when nothing is recognized.
func NormalizeCategory(text string) string {
	lower := strings.ToLower(text)
	for _, category := range categoryOrder {
		for _, syn := range categorySynonyms[category] {
			if strings.Contains(lower, syn) {
				return category
			}
		}
	}
	return ""
}

// NormalizeBudget maps a loose budget phrase to its canonical band, or
// "" when nothing is recognized.
func NormalizeBudget(text string) domain.Budget {
	lower := strings.ToLower(text)
	// "any" phrases are checked first so "any budget" does not match the
	// "budget" synonym of budget-friendly.
	for _, syn := range budgetSynonyms[domain.BudgetAny] {
		if strings.Contains(lower, syn) {
			return domain.BudgetAny
		}
	}
	for _, budget := range []domain.Budget{domain.BudgetFriendly, domain.BudgetMidRange, domain.BudgetPremium} {
		for _, syn := range budgetSynonyms[budget] {
			if strings.Contains(lower, syn) {
				return budget
			}
		}
	}
	return ""
}

// NormalizeSort maps a loose ordering phrase to its canonical value.
// Unrecognized input means no preference rather than an error.
func NormalizeSort(text string) domain.SortOrder {
	lower := strings.ToLower(text)
	for _, sort := range []domain.SortOrder{domain.SortPriceLow, domain.SortPriceHigh, domain.SortPopularity} {
		for _, syn := range sortSynonyms[sort] {
			if strings.Contains(lower, syn) {
				return sort
			}
		}
	}
	return domain.SortNone
}

func isSkip(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	switch lower {
	case "skip", "none", "no", "nope", "nothing":
		return true
	}
	return strings.Contains(lower, "no preference") || strings.Contains(lower, "don't care")
}
