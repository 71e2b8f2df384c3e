package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/ashureev/salesdrill/internal/identity"
)

const wsWriteTimeout = 10 * time.Second

// WebSocketHandler runs turns of one session over a websocket.
type WebSocketHandler struct {
	sessions       SessionService
	limiter        *TurnLimiter
	allowedOrigins []string
	isDev          bool
	logger         *slog.Logger
}

// NewWebSocketHandler creates a websocket turn handler.
func NewWebSocketHandler(sessions SessionService, limiter *TurnLimiter, allowedOrigins []string, isDev bool, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{
		sessions:       sessions,
		limiter:        limiter,
		allowedOrigins: allowedOrigins,
		isDev:          isDev,
		logger:         logger,
	}
}

// wsMessage is a client frame: {"type":"turn","content":...} or {"type":"ping"}.
type wsMessage struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

type wsTurn struct {
	Type string `json:"type"`
	chatResponse
}

type wsError struct {
	Type   string `json:"type"`
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// ServeHTTP implements http.Handler for the websocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	operator := identity.OperatorFromContext(r.Context())

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}
	if _, err := h.sessions.Get(sessionID); err != nil {
		Error(w, statusFor(err), err.Error())
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "session_id", sessionID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "session_id", sessionID)
		}
	}()

	h.logger.Info("WebSocket session attached", "session_id", sessionID, "operator", operator)
	h.readLoop(r.Context(), ws, sessionID, limiterKey(r))
	h.logger.Info("WebSocket session detached", "session_id", sessionID)
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, sessionID, limitKey string) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				h.logger.Debug("WebSocket closed by client", "session_id", sessionID)
			} else {
				h.logger.Warn("WebSocket read error", "error", err, "session_id", sessionID)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			if err := h.writeJSON(ctx, ws, wsError{Type: "error", Error: "invalid message", Status: http.StatusBadRequest}); err != nil {
				return
			}
			continue
		}

		var reply any
		switch msg.Type {
		case "ping":
			reply = map[string]string{"type": "pong"}
		case "turn":
			reply = h.turn(ctx, sessionID, limitKey, msg.Content)
		default:
			reply = wsError{Type: "error", Error: "unknown message type " + msg.Type, Status: http.StatusBadRequest}
		}
		if err := h.writeJSON(ctx, ws, reply); err != nil {
			h.logger.Debug("WebSocket write failed", "error", err, "session_id", sessionID)
			return
		}
	}
}

func (h *WebSocketHandler) turn(ctx context.Context, sessionID, limitKey, content string) any {
	if strings.TrimSpace(content) == "" {
		return wsError{Type: "error", Error: "content is required", Status: http.StatusBadRequest}
	}
	if !h.limiter.Allow(limitKey) {
		return wsError{Type: "error", Error: "rate limit exceeded", Status: http.StatusTooManyRequests}
	}
	res, err := h.sessions.Turn(ctx, sessionID, content)
	if err != nil {
		return wsError{Type: "error", Error: err.Error(), Status: statusFor(err)}
	}
	return wsTurn{Type: "turn", chatResponse: newChatResponse(res)}
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range h.allowedOrigins {
		if o == "*" || strings.TrimRight(o, "/") == origin {
			return true
		}
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin)
	return false
}

func (h *WebSocketHandler) writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
