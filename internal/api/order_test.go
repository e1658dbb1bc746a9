package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/shopmate-labs/shopmate/internal/domain"
)

func newTestOrderRouter(repo *stubRepo) chi.Router {
	r := chi.NewRouter()
	NewOrderHandler(repo).RegisterRoutes(r)
	return r
}

func TestTrackOrderFound(t *testing.T) {
	repo := newStubRepo()
	repo.orders["john.doe@example.com/ORD-2024-001"] = &domain.Order{
		OrderID: "ORD-2024-001",
		Email:   "john.doe@example.com",
		Status:  domain.OrderStatusInTransit,
		Carrier: "UPS",
	}
	router := newTestOrderRouter(repo)

	w := postJSON(t, router, "/api/track-order",
		map[string]string{"email": "john.doe@example.com", "orderId": "ord-2024-001"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Order        *domain.Order       `json:"order"`
		Timeline     []domain.OrderEvent `json:"timeline"`
		LatestUpdate string              `json:"latestUpdate"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Order == nil || resp.Order.OrderID != "ORD-2024-001" {
		t.Fatalf("order = %+v", resp.Order)
	}
	if len(resp.Timeline) == 0 {
		t.Error("timeline is empty")
	}
	if resp.LatestUpdate == "" {
		t.Error("latestUpdate is empty")
	}
}

func TestTrackOrderNotFound(t *testing.T) {
	router := newTestOrderRouter(newStubRepo())

	w := postJSON(t, router, "/api/track-order",
		map[string]string{"email": "nobody@example.com", "orderId": "ORD-0000-000"}, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["error"] == "" {
		t.Error("404 response has no error message")
	}
}

func TestTrackOrderValidation(t *testing.T) {
	router := newTestOrderRouter(newStubRepo())

	cases := []map[string]string{
		{"email": "", "orderId": "ORD-2024-001"},
		{"email": "a@b.com", "orderId": ""},
		{"email": "  ", "orderId": "  "},
	}
	for _, body := range cases {
		w := postJSON(t, router, "/api/track-order", body, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %v: status = %d, want 400", body, w.Code)
		}
	}
}

func TestHealth(t *testing.T) {
	repo := newStubRepo()
	h := NewHealthHandler(repo)
	r := chi.NewRouter()
	h.RegisterHealth(r)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	repo.pingErr = errors.New("database gone")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("degraded status = %d, want 503", w.Code)
	}

	var resp struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "degraded" {
		t.Errorf("status = %q, want degraded", resp.Status)
	}
}
