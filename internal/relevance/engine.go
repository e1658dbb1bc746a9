// Package relevance ranks catalog products against a structured query
// intent using a deterministic, explainable heuristic.
package relevance

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/shopmate-labs/shopmate/internal/domain"
)

// Scoring weights. Total is capped at maxScore.
const (
	categoryWeight = 4
	genderWeight   = 3
	priceWeight    = 2
	styleWeight    = 1
	maxScore       = 10
)

// DefaultTopK is the number of matches returned when the caller does
// not specify a limit.
const DefaultTopK = 6

// QueryIntent is the structured query derived from a raw utterance.
type QueryIntent struct {
	Category string
	Gender   string
	PriceMax float64
	Style    string
}

// Empty reports whether no criterion was derived from the utterance.
func (q QueryIntent) Empty() bool {
	return q.Category == "" && q.Gender == "" && q.PriceMax == 0 && q.Style == ""
}

// Match pairs a product with its score and the criteria it matched.
type Match struct {
	Product         domain.Product `json:"product"`
	Score           int            `json:"score"`
	MatchedCriteria []string       `json:"matchedCriteria"`
}

// categoryKeywords maps each known category to the substrings that
// identify it in product text. The catalog's own category field is not
// trusted; classification always derives from title+description.
var categoryKeywords = map[string][]string{
	"watch":      {"watch", "timepiece", "chronograph"},
	"bag":        {"bag", "handbag", "backpack", "tote", "purse", "satchel"},
	"shoes":      {"shoe", "sneaker", "boot", "loafer", "sandal", "heel"},
	"jewelry":    {"jewelry", "necklace", "bracelet", "ring", "earring", "pendant"},
	"sunglasses": {"sunglasses", "eyewear", "shades"},
	"wallet":     {"wallet", "cardholder", "card holder"},
	"perfume":    {"perfume", "fragrance", "cologne", "eau de"},
	"clothing":   {"shirt", "dress", "jacket", "coat", "sweater", "hoodie", "jeans", "trousers"},
}

// genderTokens identifies the intended audience. Matching is done on
// whole words because "women" contains "men" as a substring.
var genderTokens = []struct {
	gender string
	tokens []string
}{
	{"women", []string{"women", "women's", "womens", "woman", "ladies", "lady", "female"}},
	{"men", []string{"men", "men's", "mens", "man", "male", "gents"}},
	{"unisex", []string{"unisex"}},
}

// styleKeywords identifies style descriptors in product text.
var styleKeywords = map[string][]string{
	"casual":  {"casual", "everyday", "relaxed"},
	"formal":  {"formal", "elegant", "dress", "business"},
	"sport":   {"sport", "athletic", "running", "training", "gym"},
	"luxury":  {"luxury", "premium", "designer", "exclusive"},
	"vintage": {"vintage", "retro", "classic"},
}

// styleOrder fixes style detection order; map iteration would make the
// derived style nondeterministic for utterances matching several lists.
var styleOrder = []string{"casual", "formal", "sport", "luxury", "vintage"}

var priceCeilingPattern = regexp.MustCompile(`(?:under|below|less than|max|up to)\s*\$?\s*(\d+(?:\.\d+)?)|\$\s*(\d+(?:\.\d+)?)`)

// ParseQuery derives a structured query intent from a raw utterance
// using substring keyword checks and a price-ceiling pattern.
func ParseQuery(utterance string) QueryIntent {
	text := strings.ToLower(utterance)
	intent := QueryIntent{}

	intent.Category = detectCategory(text)
	intent.Gender = detectGender(text)

	for _, style := range styleOrder {
		if containsAny(text, styleKeywords[style]) {
			intent.Style = style
			break
		}
	}

	if m := priceCeilingPattern.FindStringSubmatch(text); m != nil {
		numStr := m[1]
		if numStr == "" {
			numStr = m[2]
		}
		if v, err := strconv.ParseFloat(numStr, 64); err == nil && v > 0 {
			intent.PriceMax = v
		}
	}

	return intent
}

// Engine ranks products against query intents.
type Engine struct {
	products []domain.Product
}

// NewEngine creates an engine over an immutable product collection.
func NewEngine(products []domain.Product) *Engine {
	return &Engine{products: products}
}

// Rank scores every product against the intent and returns the top k
// matches in descending score order. Ties keep original catalog order,
// so identical inputs always yield identical output. Products that
// match no criterion are excluded.
func (e *Engine) Rank(intent QueryIntent, k int) []Match {
	if k <= 0 {
		k = DefaultTopK
	}

	matches := make([]Match, 0, len(e.products))
	for _, p := range e.products {
		score, criteria := scoreProduct(p, intent)
		if score == 0 {
			continue
		}
		matches = append(matches, Match{Product: p, Score: score, MatchedCriteria: criteria})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

func scoreProduct(p domain.Product, intent QueryIntent) (int, []string) {
	text := strings.ToLower(p.Title + " " + p.Description)
	score := 0
	var criteria []string

	if intent.Category != "" && detectCategory(text) == intent.Category {
		score += categoryWeight
		criteria = append(criteria, "category")
	}
	if intent.Gender != "" {
		derived := detectGender(text)
		if derived == intent.Gender || derived == "unisex" {
			score += genderWeight
			criteria = append(criteria, "gender")
		}
	}
	// A zero price means the feed value was missing or unparsable; such
	// products never satisfy the price criterion but stay eligible for
	// the others.
	if intent.PriceMax > 0 && p.Price > 0 && p.Price <= intent.PriceMax {
		score += priceWeight
		criteria = append(criteria, "price")
	}
	if intent.Style != "" {
		if keywords, ok := styleKeywords[intent.Style]; ok && containsAny(text, keywords) {
			score += styleWeight
			criteria = append(criteria, "style")
		}
	}

	if score > maxScore {
		score = maxScore
	}
	return score, criteria
}

// detectCategory returns the first category whose keyword list matches
// the text. Categories are checked in a fixed order so classification
// is deterministic even when a product mentions several.
var categoryOrder = []string{"watch", "bag", "shoes", "jewelry", "sunglasses", "wallet", "perfume", "clothing"}

func detectCategory(text string) string {
	for _, cat := range categoryOrder {
		if containsAny(text, categoryKeywords[cat]) {
			return cat
		}
	}
	return ""
}

func detectGender(text string) string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r == '\'')
	})
	for _, entry := range genderTokens {
		for _, w := range words {
			for _, tok := range entry.tokens {
				if w == tok {
					return entry.gender
				}
			}
		}
	}
	return ""
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
