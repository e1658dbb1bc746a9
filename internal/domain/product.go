package domain

// Product is a catalog item. The explicit category field present in
// some feeds is unreliable and frequently absent, so it is not carried
// here; category and gender are derived from title/description text at
// ranking time.
type Product struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	ImageURL    string  `json:"imageUrl,omitempty"`
	ProductURL  string  `json:"productUrl"`
}

// KnowledgeItem is an admin-curated snippet used for retrieval.
// Read-only to the assistant core.
type KnowledgeItem struct {
	Title     string `json:"title"`
	Content   string `json:"content"`
	Type      string `json:"type"`
	SourceURL string `json:"sourceUrl,omitempty"`
	IsActive  bool   `json:"isActive"`
}
