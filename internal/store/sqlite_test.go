package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopmate-labs/shopmate/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return repo
}

func TestGetOrCreateSession(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	sess, err := repo.GetOrCreateSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetOrCreateSession: %v", err)
	}
	if sess.ID != "sess-1" {
		t.Errorf("ID = %q, want sess-1", sess.ID)
	}
	if sess.FlowState != domain.FlowIdle {
		t.Errorf("new session state = %q, want idle", sess.FlowState)
	}
	if len(sess.Messages) != 0 {
		t.Errorf("new session has %d messages", len(sess.Messages))
	}

	// Second call loads the same record instead of resetting it.
	if err := repo.WriteSlots(ctx, "sess-1", domain.PreferenceSlots{Category: "watch"}, domain.FlowAwaitingBudget); err != nil {
		t.Fatalf("WriteSlots: %v", err)
	}
	sess, err = repo.GetOrCreateSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetOrCreateSession (reload): %v", err)
	}
	if sess.FlowState != domain.FlowAwaitingBudget {
		t.Errorf("reloaded state = %q, want awaiting_budget", sess.FlowState)
	}
	if sess.Slots.Category != "watch" {
		t.Errorf("reloaded category = %q, want watch", sess.Slots.Category)
	}
}

func TestAppendAndReadHistory(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Minute)
	msgs := []domain.Message{
		{Role: domain.RoleUser, Content: "first", Timestamp: base},
		{Role: domain.RoleAssistant, Content: "second", Timestamp: base.Add(time.Second)},
		{Role: domain.RoleUser, Content: "third", Timestamp: base.Add(2 * time.Second)},
	}
	for _, msg := range msgs {
		if err := repo.AppendMessage(ctx, "sess-1", msg); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	history, err := repo.GetHistory(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	for i, want := range []string{"first", "second", "third"} {
		if history[i].Content != want {
			t.Errorf("history[%d] = %q, want %q", i, history[i].Content, want)
		}
	}

	// Reads without intervening writes are identical.
	again, err := repo.GetHistory(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetHistory (again): %v", err)
	}
	if len(again) != len(history) {
		t.Fatalf("repeated read length = %d, want %d", len(again), len(history))
	}
	for i := range history {
		if again[i] != history[i] {
			t.Errorf("repeated read differs at %d: %+v vs %+v", i, again[i], history[i])
		}
	}
}

func TestGetRecentMessages(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	for i, content := range []string{"one", "two", "three", "four"} {
		msg := domain.Message{Role: domain.RoleUser, Content: content, Timestamp: time.Now().Add(time.Duration(i) * time.Second)}
		if err := repo.AppendMessage(ctx, "sess-1", msg); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	recent, err := repo.GetRecentMessages(ctx, "sess-1", 2)
	if err != nil {
		t.Fatalf("GetRecentMessages: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("recent length = %d, want 2", len(recent))
	}
	if recent[0].Content != "three" || recent[1].Content != "four" {
		t.Errorf("recent = [%q, %q], want [three, four]", recent[0].Content, recent[1].Content)
	}

	// Messages from other sessions never leak in.
	if err := repo.AppendMessage(ctx, "sess-2", domain.Message{Role: domain.RoleUser, Content: "other"}); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	recent, err = repo.GetRecentMessages(ctx, "sess-1", 10)
	if err != nil {
		t.Fatalf("GetRecentMessages: %v", err)
	}
	if len(recent) != 4 {
		t.Errorf("recent length = %d, want 4", len(recent))
	}
}

func TestWriteAndReadSlots(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	slots := domain.PreferenceSlots{
		Category: "watch",
		Budget:   domain.BudgetMidRange,
		Features: []string{"leather strap", "water resistant"},
		Sort:     domain.SortPriceLow,
	}
	if err := repo.WriteSlots(ctx, "sess-1", slots, domain.FlowAwaitingSort); err != nil {
		t.Fatalf("WriteSlots: %v", err)
	}

	got, state, err := repo.ReadSlots(ctx, "sess-1")
	if err != nil {
		t.Fatalf("ReadSlots: %v", err)
	}
	if state != domain.FlowAwaitingSort {
		t.Errorf("state = %q, want awaiting_sort", state)
	}
	if got.Category != "watch" || got.Budget != domain.BudgetMidRange {
		t.Errorf("slots = %+v", got)
	}
	if len(got.Features) != 2 {
		t.Errorf("features = %v", got.Features)
	}
}

func TestWriteSlotsRejectsInvalidState(t *testing.T) {
	repo := newTestStore(t)

	err := repo.WriteSlots(context.Background(), "sess-1", domain.PreferenceSlots{}, domain.FlowState("corrupted"))
	if err == nil {
		t.Fatal("WriteSlots accepted an invalid flow state")
	}
}

func TestReadSlotsUnknownSessionIsIdle(t *testing.T) {
	repo := newTestStore(t)

	slots, state, err := repo.ReadSlots(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("ReadSlots: %v", err)
	}
	if state != domain.FlowIdle {
		t.Errorf("state = %q, want idle", state)
	}
	if slots.Category != "" {
		t.Errorf("slots = %+v, want empty", slots)
	}
}

func TestGetOrderDemoSeeds(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	order, timeline, err := repo.GetOrder(ctx, "john.doe@example.com", "ORD-2024-001")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if order.Status != domain.OrderStatusInTransit {
		t.Errorf("status = %q, want in_transit", order.Status)
	}
	if order.Carrier != "UPS" {
		t.Errorf("carrier = %q, want UPS", order.Carrier)
	}
	if len(timeline) != 3 {
		t.Fatalf("timeline length = %d, want 3", len(timeline))
	}
	if timeline[len(timeline)-1].Status != domain.OrderStatusInTransit {
		t.Errorf("latest event status = %q", timeline[len(timeline)-1].Status)
	}

	// Email matching is case-insensitive.
	if _, _, err := repo.GetOrder(ctx, "John.Doe@Example.com", "ORD-2024-001"); err != nil {
		t.Errorf("case-insensitive email lookup failed: %v", err)
	}

	// Wrong email for a real order id does not match.
	if _, _, err := repo.GetOrder(ctx, "someone.else@example.com", "ORD-2024-001"); err != ErrOrderNotFound {
		t.Errorf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestSeedingIsIdempotentAcrossReopens(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reopen.db")

	repo, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	if err := repo.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	repo, err = NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite (reopen): %v", err)
	}
	defer repo.Close()

	_, timeline, err := repo.GetOrder(context.Background(), "jane.smith@company.com", "ORD-2024-002")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if len(timeline) != 3 {
		t.Errorf("timeline length after reopen = %d, want 3 (events duplicated?)", len(timeline))
	}
}
