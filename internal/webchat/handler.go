package webchat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/pixelcraft/concierge/internal/chat"
	"github.com/pixelcraft/concierge/pkg/logging"
)

// Responder answers one widget turn with streamed fragments; satisfied by
// *chat.Service.
type Responder interface {
	Stream(ctx context.Context, req *chat.Request, emit func(chat.Fragment) error) (string, error)
}

// Handler manages the floating widget's WebSocket connections.
type Handler struct {
	responder Responder
	history   *chat.HistoryStore
	logger    *logging.Logger
	widgetJS  []byte

	mu       sync.RWMutex
	sessions map[string]*wsConn // conversationID -> active connection
}

type wsConn struct {
	conn *websocket.Conn
	done chan struct{}
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type      string            `json:"type"` // "message", "event", "ping"
	Business  string            `json:"business_id"`
	SessionID string            `json:"session_id"`
	Text      string            `json:"text,omitempty"`
	Event     *chat.WidgetEvent `json:"event,omitempty"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type      string            `json:"type"` // "message", "typing", "history", "session", "error", "pong"
	Text      string            `json:"text,omitempty"`
	Role      string            `json:"role,omitempty"`
	UI        *chat.UIComponent `json:"ui,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	Timestamp string            `json:"timestamp,omitempty"`
	Messages  []HistoryMessage  `json:"messages,omitempty"`
}

// HistoryMessage is a simplified message for history replay.
type HistoryMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// NewHandler creates a webchat handler. widgetJS, when set, is served from
// HandleWidgetJS for embedding.
func NewHandler(responder Responder, history *chat.HistoryStore, widgetJS []byte, logger *logging.Logger) *Handler {
	if responder == nil {
		panic("webchat: responder cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		responder: responder,
		history:   history,
		logger:    logger,
		widgetJS:  widgetJS,
		sessions:  make(map[string]*wsConn),
	}
}

// ConversationID builds the canonical conversation ID for a widget session.
func ConversationID(businessID, sessionID string) string {
	return fmt.Sprintf("webchat:%s:%s", businessID, sessionID)
}

func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}

// HandleWebSocket upgrades to WebSocket and handles real-time messaging.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	businessID := r.URL.Query().Get("business")
	if businessID == "" {
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: "missing business parameter"})
		return
	}

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = generateSessionID()
	}
	convID := ConversationID(businessID, sessionID)

	_ = websocket.JSON.Send(conn, OutboundMessage{Type: "session", SessionID: sessionID})
	h.replayHistory(r.Context(), conn, convID)

	wsc := &wsConn{conn: conn, done: make(chan struct{})}
	h.mu.Lock()
	h.sessions[convID] = wsc
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		if h.sessions[convID] == wsc {
			delete(h.sessions, convID)
		}
		h.mu.Unlock()
		close(wsc.done)
	}()

	h.logger.Info("webchat: connection opened", "business_id", businessID, "session_id", sessionID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "business_id", businessID, "error", err)
			return
		}

		switch {
		case msg.Type == "ping":
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "pong"})
		case msg.Type == "event" && msg.Event != nil:
			h.processTurn(r.Context(), convID, businessID, "", msg.Event)
		case msg.Type == "message" && strings.TrimSpace(msg.Text) != "":
			h.processTurn(r.Context(), convID, businessID, msg.Text, nil)
		}
	}
}

// processTurn drives one chat turn and pushes each fragment to the socket
// as it arrives.
func (h *Handler) processTurn(ctx context.Context, convID, businessID, text string, event *chat.WidgetEvent) {
	h.SendToSession(convID, OutboundMessage{Type: "typing"})

	req := &chat.Request{
		ConversationID: convID,
		BusinessID:     businessID,
		Message:        text,
		Event:          event,
	}
	if _, err := h.responder.Stream(ctx, req, func(frag chat.Fragment) error {
		h.SendToSession(convID, fragmentFrame(frag))
		return nil
	}); err != nil {
		h.logger.Error("webchat: turn failed", "error", err, "business_id", businessID)
		h.SendToSession(convID, OutboundMessage{
			Type: "error",
			Text: "Sorry, something went wrong. Please try again.",
		})
	}
}

// replayHistory pushes the stored transcript so a returning visitor sees
// the earlier exchange. The system prompt never leaves the server.
func (h *Handler) replayHistory(ctx context.Context, conn *websocket.Conn, convID string) {
	if h.history == nil {
		return
	}
	msgs, err := h.history.Load(ctx, convID)
	if err != nil || len(msgs) == 0 {
		return
	}
	replay := make([]HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == chat.RoleSystem {
			continue
		}
		replay = append(replay, HistoryMessage{Role: m.Role, Text: m.Content})
	}
	if len(replay) > 0 {
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "history", Messages: replay})
	}
}

// SendToSession sends a frame to an active WebSocket session, if any.
func (h *Handler) SendToSession(convID string, msg OutboundMessage) {
	h.mu.RLock()
	wsc, ok := h.sessions[convID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	_ = websocket.JSON.Send(wsc.conn, msg)
}

// HandleMessage is the HTTP fallback for environments without WebSocket.
// Fragments are collected and returned in one JSON response.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BusinessID string            `json:"business_id"`
		SessionID  string            `json:"session_id"`
		Text       string            `json:"text"`
		Event      *chat.WidgetEvent `json:"event,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.BusinessID == "" || (req.Text == "" && req.Event == nil) {
		http.Error(w, "business_id and text or event are required", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		req.SessionID = generateSessionID()
	}

	var frames []OutboundMessage
	turn := &chat.Request{
		ConversationID: ConversationID(req.BusinessID, req.SessionID),
		BusinessID:     req.BusinessID,
		Message:        req.Text,
		Event:          req.Event,
	}
	if _, err := h.responder.Stream(r.Context(), turn, func(frag chat.Fragment) error {
		frames = append(frames, fragmentFrame(frag))
		return nil
	}); err != nil {
		h.logger.Error("webchat: fallback turn failed", "error", err, "business_id", req.BusinessID)
		http.Error(w, "chat unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"session_id": req.SessionID,
		"messages":   frames,
	})
}

// HandleWidgetJS serves the embeddable widget JavaScript.
func (h *Handler) HandleWidgetJS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	_, _ = w.Write(h.widgetJS)
}

