package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lithammer/shortuuid/v4"

	"github.com/shopmate-labs/shopmate/internal/assistant"
	"github.com/shopmate-labs/shopmate/internal/domain"
	"github.com/shopmate-labs/shopmate/internal/relevance"
	"github.com/shopmate-labs/shopmate/internal/store"
)

// SessionHeaderName is the side-channel header carrying a session hint.
// When both the body and the header supply an id, the header (the most
// recently supplied value) wins and the response echoes it back.
const SessionHeaderName = "X-Session-ID"

const maxChatBodySize = 64 * 1024

// Session tokens are server-issued shortuuids, but clients may echo
// them back through the body or header. Anything outside the safe
// charset is discarded and replaced with a fresh token.
var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// resolveSessionID picks the authoritative session id for a request:
// the header hint beats the body value (most recently supplied wins),
// and an absent or malformed id means the server issues a fresh token.
func resolveSessionID(r *http.Request, bodyID string) string {
	sessionID := bodyID
	if hint := r.Header.Get(SessionHeaderName); hint != "" {
		sessionID = hint
	}
	if !sessionIDPattern.MatchString(sessionID) {
		return shortuuid.New()
	}
	return sessionID
}

// ChatHandler serves the chat endpoints.
type ChatHandler struct {
	svc  *assistant.Service
	repo store.Repository
}

// NewChatHandler creates a chat handler.
func NewChatHandler(svc *assistant.Service, repo store.Repository) *ChatHandler {
	return &ChatHandler{svc: svc, repo: repo}
}

// RegisterRoutes registers the chat routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/chat/message", h.HandleMessage)
	r.Get("/api/chat/history/{sessionID}", h.HandleHistory)
}

type chatRequest struct {
	SessionID string `json:"sessionId"`
	Content   string `json:"content"`
}

type chatResponse struct {
	Message                string             `json:"message"`
	Products               []relevance.Match  `json:"products,omitempty"`
	Sources                []assistant.Source `json:"sources,omitempty"`
	Confidence             float64            `json:"confidence,omitempty"`
	ShouldStartProductFlow bool               `json:"shouldStartProductFlow,omitempty"`
	SessionID              string             `json:"sessionId"`
}

type historyEntry struct {
	Content   string    `json:"content"`
	IsBot     bool      `json:"isBot"`
	Timestamp time.Time `json:"timestamp"`
}

// HandleMessage processes one chat turn.
func (h *ChatHandler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodySize)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" {
		Error(w, http.StatusBadRequest, "content is required")
		return
	}

	sessionID := resolveSessionID(r, req.SessionID)

	reply, err := h.svc.HandleMessage(r.Context(), sessionID, req.Content)
	if err != nil {
		if errors.Is(err, assistant.ErrValidation) {
			Error(w, http.StatusBadRequest, "sessionId and content are required")
			return
		}
		slog.Error("chat turn failed", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "something went wrong, please try again")
		return
	}

	JSON(w, http.StatusOK, chatResponse{
		Message:                reply.Message,
		Products:               reply.Products,
		Sources:                reply.Sources,
		Confidence:             reply.Confidence,
		ShouldStartProductFlow: reply.ShouldStartProductFlow,
		SessionID:              sessionID,
	})
}

// HandleHistory returns the ordered conversation log for a session.
// Idempotent: repeated calls with no intervening writes return
// identical output.
func (h *ChatHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		Error(w, http.StatusBadRequest, "sessionID is required")
		return
	}

	msgs, err := h.repo.GetHistory(r.Context(), sessionID)
	if err != nil {
		slog.Error("failed to load history", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	entries := make([]historyEntry, 0, len(msgs))
	for _, msg := range msgs {
		entries = append(entries, historyEntry{
			Content:   msg.Content,
			IsBot:     msg.Role == domain.RoleAssistant,
			Timestamp: msg.Timestamp,
		})
	}
	JSON(w, http.StatusOK, entries)
}
