package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"DebateArena/internal/debate"

	"github.com/gorilla/websocket"
)

const (
	EventReset  = "reset"
	EventAppend = "append"

	sendBuffer = 64
	writeWait  = 10 * time.Second
)

// Event is pushed to websocket subscribers for every transcript change
type Event struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Topic     string          `json:"topic,omitempty"`
	Message   *debate.Message `json:"message,omitempty"`
}

type subscriber struct {
	conn *websocket.Conn
	send chan Event
}

// Hub broadcasts transcript events to websocket clients. It implements
// debate.Sink. Clients that fall behind are disconnected.
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

// NewHub creates an empty Hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the UI may be served from another origin (static hosting)
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
		subs:   make(map[*subscriber]struct{}),
	}
}

// Reset broadcasts a reset event
func (h *Hub) Reset(sessionID, topic string) {
	h.broadcast(Event{Type: EventReset, SessionID: sessionID, Topic: topic})
}

// Append broadcasts a message event
func (h *Hub) Append(msg debate.Message) {
	h.broadcast(Event{Type: EventAppend, Message: &msg})
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) broadcast(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		select {
		case sub.send <- ev:
		default:
			h.logger.Warn("dropping slow websocket client", "remote", sub.conn.RemoteAddr().String())
			h.removeLocked(sub)
		}
	}
}

func (h *Hub) removeLocked(sub *subscriber) {
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.send)
	}
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(sub)
}

// ServeHTTP upgrades the request and streams events until the client leaves
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	sub := &subscriber{conn: conn, send: make(chan Event, sendBuffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("websocket client connected", "remote", conn.RemoteAddr().String())

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writeLoop(sub)
	}()

	// reads only detect the close; clients do not send anything
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(sub)
	<-done
	conn.Close()
	h.logger.Info("websocket client disconnected", "remote", conn.RemoteAddr().String())
}

func (h *Hub) writeLoop(sub *subscriber) {
	for ev := range sub.send {
		_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := sub.conn.WriteJSON(ev); err != nil {
			h.logger.Warn("websocket write failed", "error", err)
			// unblock the read loop
			sub.conn.Close()
			h.remove(sub)
			for range sub.send {
			}
			return
		}
	}
	_ = sub.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}
