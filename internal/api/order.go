package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shopmate-labs/shopmate/internal/domain"
	"github.com/shopmate-labs/shopmate/internal/store"
)

// OrderHandler serves the order-tracking endpoint. The dialogue flow
// consumes the same repository contract, so both paths always agree.
type OrderHandler struct {
	repo store.Repository
}

// NewOrderHandler creates an order handler.
func NewOrderHandler(repo store.Repository) *OrderHandler {
	return &OrderHandler{repo: repo}
}

// RegisterRoutes registers the order routes.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/track-order", h.HandleTrackOrder)
}

type trackOrderRequest struct {
	Email   string `json:"email"`
	OrderID string `json:"orderId"`
}

type trackOrderResponse struct {
	Order        *domain.Order       `json:"order"`
	Timeline     []domain.OrderEvent `json:"timeline"`
	LatestUpdate string              `json:"latestUpdate"`
}

// HandleTrackOrder looks up an order by email and order id.
func (h *OrderHandler) HandleTrackOrder(w http.ResponseWriter, r *http.Request) {
	var req trackOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.OrderID = strings.TrimSpace(req.OrderID)
	if req.Email == "" || req.OrderID == "" {
		Error(w, http.StatusBadRequest, "email and orderId are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	order, timeline, err := h.repo.GetOrder(ctx, req.Email, strings.ToUpper(req.OrderID))
	if errors.Is(err, store.ErrOrderNotFound) {
		Error(w, http.StatusNotFound,
			"We couldn't find an order with those details. Please double-check your email and order number, or contact support.")
		return
	}
	if err != nil {
		slog.Error("order lookup failed", "order_id", req.OrderID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to look up order")
		return
	}

	latest := ""
	if len(timeline) > 0 {
		latest = timeline[len(timeline)-1].Description
	}
	JSON(w, http.StatusOK, trackOrderResponse{
		Order:        order,
		Timeline:     timeline,
		LatestUpdate: latest,
	})
}
