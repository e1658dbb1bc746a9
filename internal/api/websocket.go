package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/lithammer/shortuuid/v4"

	"github.com/shopmate-labs/shopmate/internal/assistant"
)

// WebSocketHandler serves the chat channel over one socket. Each text
// frame is one chat turn with the same semantics as POST
// /api/chat/message; replies (including product payloads) are pushed
// back on the same connection.
type WebSocketHandler struct {
	svc           *assistant.Service
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a websocket chat handler.
func NewWebSocketHandler(svc *assistant.Service, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{svc: svc, allowedOrigin: allowedOrigin, isDev: isDev}
}

type wsError struct {
	Error string `json:"error"`
}

// ServeHTTP upgrades the connection and runs the chat loop.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // origin validated above
	})
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("websocket close", "error", closeErr)
		}
	}()

	// One session token per connection unless the client supplies one
	// with the first frame.
	sessionID := r.URL.Query().Get("sessionId")
	if !sessionIDPattern.MatchString(sessionID) {
		sessionID = shortuuid.New()
	}

	ctx := r.Context()
	for {
		var req chatRequest
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				slog.Debug("websocket read failed", "error", err)
			}
			return
		}
		if err := json.Unmarshal(data, &req); err != nil || strings.TrimSpace(req.Content) == "" {
			h.writeJSON(ctx, ws, wsError{Error: "content is required"})
			continue
		}
		if req.SessionID != "" && sessionIDPattern.MatchString(req.SessionID) {
			sessionID = req.SessionID
		}

		reply, err := h.svc.HandleMessage(ctx, sessionID, req.Content)
		if err != nil {
			slog.Error("websocket chat turn failed", "session_id", sessionID, "error", err)
			h.writeJSON(ctx, ws, wsError{Error: "something went wrong, please try again"})
			continue
		}

		h.writeJSON(ctx, ws, chatResponse{
			Message:                reply.Message,
			Products:               reply.Products,
			Sources:                reply.Sources,
			Confidence:             reply.Confidence,
			ShouldStartProductFlow: reply.ShouldStartProductFlow,
			SessionID:              sessionID,
		})
	}
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return h.allowedOrigin == "" || strings.HasPrefix(origin, h.allowedOrigin)
}

func (h *WebSocketHandler) writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("failed to marshal websocket payload", "error", err)
		return
	}
	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := ws.Write(writeCtx, websocket.MessageText, data); err != nil {
		slog.Debug("websocket write failed", "error", err)
	}
}
