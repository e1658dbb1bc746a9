// Package domain defines the core types shared across the assistant.
package domain

import (
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single entry in a session's conversation log.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// FlowState is the dialogue position of a session.
type FlowState string

const (
	FlowIdle             FlowState = "idle"
	FlowAwaitingEmail    FlowState = "awaiting_email"
	FlowAwaitingOrderID  FlowState = "awaiting_order_id"
	FlowAwaitingCategory FlowState = "awaiting_category"
	FlowAwaitingBudget   FlowState = "awaiting_budget"
	FlowAwaitingFeatures FlowState = "awaiting_features"
	FlowAwaitingSort     FlowState = "awaiting_sort"
)

// Valid reports whether s is one of the defined flow states.
func (s FlowState) Valid() bool {
	switch s {
	case FlowIdle, FlowAwaitingEmail, FlowAwaitingOrderID,
		FlowAwaitingCategory, FlowAwaitingBudget,
		FlowAwaitingFeatures, FlowAwaitingSort:
		return true
	}
	return false
}

// Budget is the canonical price-band slot value.
type Budget string

const (
	BudgetFriendly Budget = "budget-friendly"
	BudgetMidRange Budget = "mid-range"
	BudgetPremium  Budget = "premium"
	BudgetAny      Budget = "any"
)

// Valid reports whether b is a defined budget band.
func (b Budget) Valid() bool {
	switch b {
	case BudgetFriendly, BudgetMidRange, BudgetPremium, BudgetAny:
		return true
	}
	return false
}

// SortOrder is the canonical result-ordering slot value.
type SortOrder string

const (
	SortNone       SortOrder = "none"
	SortPriceLow   SortOrder = "price_low"
	SortPriceHigh  SortOrder = "price_high"
	SortPopularity SortOrder = "popularity"
)

// PreferenceSlots holds the structured purchase preferences collected
// during the slot-filling dialogue. Slots fill monotonically through
// category -> budget -> features -> sort; SearchQuery short-circuits
// the whole sequence.
type PreferenceSlots struct {
	Category    string    `json:"category,omitempty"`
	Budget      Budget    `json:"budget,omitempty"`
	Features    []string  `json:"features,omitempty"`
	Sort        SortOrder `json:"sort,omitempty"`
	SearchQuery string    `json:"searchQuery,omitempty"`

	// CategoryPhrase keeps the raw utterance that filled Category so
	// criteria like gender or style it carried survive until ranking.
	CategoryPhrase string `json:"categoryPhrase,omitempty"`

	// PendingEmail carries the validated email between the two steps of
	// the order-tracking dialogue. Cleared when the flow resolves.
	PendingEmail string `json:"pendingEmail,omitempty"`
}

// ReadyForProducts reports whether enough preference has been collected
// to surface product recommendations: either an explicit search query,
// or at minimum both category and budget.
func (s PreferenceSlots) ReadyForProducts() bool {
	if s.SearchQuery != "" {
		return true
	}
	return s.Category != "" && s.Budget != ""
}

// Clone returns a deep copy of the slots, safe to mutate independently.
func (s PreferenceSlots) Clone() PreferenceSlots {
	out := s
	if s.Features != nil {
		out.Features = append([]string(nil), s.Features...)
	}
	return out
}

// Session is the durable unit of one ongoing conversation.
type Session struct {
	ID        string
	Messages  []Message
	FlowState FlowState
	Slots     PreferenceSlots
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RecentMessages returns the last n messages, most-recent-last.
func (s *Session) RecentMessages(n int) []Message {
	if n >= len(s.Messages) {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}
