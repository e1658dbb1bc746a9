// Package dialog implements the slot-filling dialogue state machine.
//
// Every transition computes its result on a copy of the session's
// slots and flow state, then commits both in a single atomic store
// write. A failure at any point leaves the persisted session exactly
// as it was before the transition attempt.
package dialog

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/shopmate-labs/shopmate/internal/domain"
	"github.com/shopmate-labs/shopmate/internal/store"
)

// Outcome is the result of one dialogue transition.
type Outcome struct {
	// Reply is the assistant's next utterance.
	Reply string

	// State and Slots reflect the committed post-transition session.
	State domain.FlowState
	Slots domain.PreferenceSlots

	// ProductsReady reports that the policy gate for surfacing products
	// is now satisfied (explicit search query, or category+budget).
	ProductsReady bool

	// SearchText is the text to derive a product query from when
	// ProductsReady is true.
	SearchText string

	// Order and Timeline are set when the tracking flow resolved.
	Order    *domain.Order
	Timeline []domain.OrderEvent
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Machine drives the preference and order-tracking dialogues.
type Machine struct {
	repo store.Repository
}

// NewMachine creates a dialogue machine over the given repository.
func NewMachine(repo store.Repository) *Machine {
	return &Machine{repo: repo}
}

// StartProductFlow moves an idle session into the preference dialogue.
func (m *Machine) StartProductFlow(ctx context.Context, sess *domain.Session) (Outcome, error) {
	slots := sess.Slots.Clone()
	slots.Category = ""
	slots.CategoryPhrase = ""
	slots.Budget = ""
	slots.Features = nil
	slots.Sort = ""
	slots.SearchQuery = ""

	out := Outcome{
		Reply: "I'd love to help you find something! What kind of product are you looking for? " +
			"For example: watches, bags, shoes, jewelry, or perfume.",
		State: domain.FlowAwaitingCategory,
		Slots: slots,
	}
	return m.commit(ctx, sess, out)
}

// StartTrackingFlow moves an idle session into the order-tracking dialogue.
func (m *Machine) StartTrackingFlow(ctx context.Context, sess *domain.Session) (Outcome, error) {
	slots := sess.Slots.Clone()
	slots.PendingEmail = ""

	out := Outcome{
		Reply: "I can check on your order. What's the email address you used when placing it?",
		State: domain.FlowAwaitingEmail,
		Slots: slots,
	}
	return m.commit(ctx, sess, out)
}

// RequestRefinement re-enters the preference dialogue at the features
// step. Only valid once category and budget are already filled.
func (m *Machine) RequestRefinement(ctx context.Context, sess *domain.Session) (Outcome, error) {
	if sess.Slots.Category == "" || sess.Slots.Budget == "" {
		return Outcome{}, errors.New("refinement requires category and budget")
	}
	out := Outcome{
		Reply: "Sure! Any particular features you care about? List a few, or say \"skip\".",
		State: domain.FlowAwaitingFeatures,
		Slots: sess.Slots.Clone(),
	}
	return m.commit(ctx, sess, out)
}

// Advance processes one user utterance for a session that is mid-flow.
// Calling it on an idle session is a programming error.
func (m *Machine) Advance(ctx context.Context, sess *domain.Session, utterance string) (Outcome, error) {
	text := strings.TrimSpace(utterance)

	var out Outcome
	var err error
	switch sess.FlowState {
	case domain.FlowAwaitingEmail:
		out = m.advanceEmail(sess, text)
	case domain.FlowAwaitingOrderID:
		out, err = m.advanceOrderID(ctx, sess, text)
	case domain.FlowAwaitingCategory:
		out = advanceCategory(sess, text)
	case domain.FlowAwaitingBudget:
		out = advanceBudget(sess, text)
	case domain.FlowAwaitingFeatures:
		out = advanceFeatures(sess, text)
	case domain.FlowAwaitingSort:
		out = advanceSort(sess, text)
	default:
		return Outcome{}, errors.Errorf("advance called in state %q", sess.FlowState)
	}
	if err != nil {
		return Outcome{}, err
	}

	return m.commit(ctx, sess, out)
}

// commit persists the outcome's slots and state atomically, then
// mirrors them onto the in-memory session. On error the session is
// untouched.
func (m *Machine) commit(ctx context.Context, sess *domain.Session, out Outcome) (Outcome, error) {
	if err := m.repo.WriteSlots(ctx, sess.ID, out.Slots, out.State); err != nil {
		return Outcome{}, errors.Wrap(err, "commit transition")
	}
	sess.Slots = out.Slots
	sess.FlowState = out.State
	return out, nil
}

func (m *Machine) advanceEmail(sess *domain.Session, text string) Outcome {
	slots := sess.Slots.Clone()
	if !emailPattern.MatchString(text) {
		return Outcome{
			Reply: "That doesn't look like an email address. Could you re-enter it? (e.g. name@example.com)",
			State: domain.FlowAwaitingEmail,
			Slots: slots,
		}
	}
	slots.PendingEmail = text
	return Outcome{
		Reply: "Thanks! And what's your order number? It looks like ORD-2024-001.",
		State: domain.FlowAwaitingOrderID,
		Slots: slots,
	}
}

func (m *Machine) advanceOrderID(ctx context.Context, sess *domain.Session, text string) (Outcome, error) {
	slots := sess.Slots.Clone()
	orderID := strings.ToUpper(text)

	order, timeline, err := m.repo.GetOrder(ctx, slots.PendingEmail, orderID)
	if errors.Is(err, store.ErrOrderNotFound) {
		slots.PendingEmail = ""
		return Outcome{
			Reply: "I couldn't find an order matching that email and order number. " +
				"You can double-check the details and try again, or contact support@shopmate.example for help.",
			State: domain.FlowIdle,
			Slots: slots,
		}, nil
	}
	if err != nil {
		return Outcome{}, errors.Wrap(err, "look up order")
	}

	slots.PendingEmail = ""
	latest := "no updates yet"
	if len(timeline) > 0 {
		latest = timeline[len(timeline)-1].Description
	}
	return Outcome{
		Reply: fmt.Sprintf("Found it! Order %s is currently %s. Latest update: %s.",
			order.OrderID, describeStatus(order.Status), latest),
		State:    domain.FlowIdle,
		Slots:    slots,
		Order:    order,
		Timeline: timeline,
	}, nil
}

func advanceCategory(sess *domain.Session, text string) Outcome {
	slots := sess.Slots.Clone()

	category := NormalizeCategory(text)
	if category == "" {
		// Escape hatch: treat unrecognized input as a direct search.
		slots.SearchQuery = text
		return Outcome{
			Reply:         "Let me search for that directly.",
			State:         domain.FlowIdle,
			Slots:         slots,
			ProductsReady: true,
			SearchText:    text,
		}
	}

	slots.Category = category
	slots.CategoryPhrase = text
	return Outcome{
		Reply: fmt.Sprintf("Great choice! What's your budget for a %s? "+
			"You can say something like \"cheap\", \"mid-range\", \"premium\", or \"any\".", category),
		State: domain.FlowAwaitingBudget,
		Slots: slots,
	}
}

func advanceBudget(sess *domain.Session, text string) Outcome {
	slots := sess.Slots.Clone()

	budget := NormalizeBudget(text)
	if budget == "" {
		slots.SearchQuery = text
		return Outcome{
			Reply:         "Let me search for that directly.",
			State:         domain.FlowIdle,
			Slots:         slots,
			ProductsReady: true,
			SearchText:    text,
		}
	}

	slots.Budget = budget
	return Outcome{
		Reply:         "Here's what I found for you:",
		State:         domain.FlowIdle,
		Slots:         slots,
		ProductsReady: true,
		SearchText:    searchText(slots),
	}
}

func advanceFeatures(sess *domain.Session, text string) Outcome {
	slots := sess.Slots.Clone()

	if !isSkip(text) {
		for _, f := range strings.Split(text, ",") {
			f = strings.TrimSpace(strings.ToLower(f))
			if f != "" {
				slots.Features = append(slots.Features, f)
			}
		}
	}

	return Outcome{
		Reply: "How should I sort the results? \"cheapest first\", \"most expensive first\", " +
			"\"most popular\", or \"no preference\".",
		State: domain.FlowAwaitingSort,
		Slots: slots,
	}
}

func advanceSort(sess *domain.Session, text string) Outcome {
	slots := sess.Slots.Clone()

	slots.Sort = NormalizeSort(text)
	return Outcome{
		Reply:         "Here's what I found for you:",
		State:         domain.FlowIdle,
		Slots:         slots,
		ProductsReady: true,
		SearchText:    searchText(slots),
	}
}

// searchText composes the ranking query from the filled slots. The raw
// category phrase is preferred over the canonical value because it may
// carry gender or style cues.
func searchText(slots domain.PreferenceSlots) string {
	base := slots.CategoryPhrase
	if base == "" {
		base = slots.Category
	}
	parts := []string{base, budgetSearchHint(slots.Budget)}
	parts = append(parts, slots.Features...)
	return strings.TrimSpace(strings.Join(parts, " "))
}

func describeStatus(status domain.OrderStatus) string {
	switch status {
	case domain.OrderStatusProcessing:
		return "being processed"
	case domain.OrderStatusShipped:
		return "shipped"
	case domain.OrderStatusInTransit:
		return "in transit"
	case domain.OrderStatusDelivered:
		return "delivered"
	}
	return string(status)
}

// budgetSearchHint enriches the derived search text so the relevance
// engine sees a price-related cue for concrete bands.
func budgetSearchHint(b domain.Budget) string {
	switch b {
	case domain.BudgetFriendly:
		return "under 100"
	case domain.BudgetMidRange:
		return "under 500"
	case domain.BudgetPremium:
		return "luxury"
	}
	return ""
}
