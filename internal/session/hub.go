package session

import (
	"sync"

	"github.com/raphaelfeliz/chat-nov9/internal/common/logger"
	"github.com/raphaelfeliz/chat-nov9/internal/store"
)

// TimelinePush is the frame sent to websocket subscribers after every
// timeline change.
type TimelinePush struct {
	Type     string              `json:"type"`
	Session  string              `json:"session"`
	Messages []store.ChatMessage `json:"messages"`
}

// Conn is the slice of a websocket connection the hub writes to. The
// concrete type is *websocket.Conn; tests substitute a recorder.
type Conn interface {
	WriteJSON(v interface{}) error
}

// Subscriber serializes writes to one connection. The websocket package
// allows at most one concurrent writer per connection, so every frame,
// including the handler's greeting, must go through Push.
type Subscriber struct {
	mu   sync.Mutex
	conn Conn
}

// Push writes one frame while holding the connection's write lock.
func (s *Subscriber) Push(p TimelinePush) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(p)
}

// Hub fans timeline updates out to the websocket connections watching a
// session. The subscriber set has its own lock; each subscriber carries the
// write lock for its connection.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[Conn]*Subscriber
	log   logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		conns: make(map[string]map[Conn]*Subscriber),
		log:   log.With(map[string]interface{}{"component": "ws-hub"}),
	}
}

// Register adds a connection to the session's subscriber set and returns
// its write-serializing handle.
func (h *Hub) Register(sessionID string, c Conn) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[sessionID] == nil {
		h.conns[sessionID] = make(map[Conn]*Subscriber)
	}
	sub := &Subscriber{conn: c}
	h.conns[sessionID][c] = sub
	return sub
}

// Unregister drops a connection. Safe to call for unknown connections.
func (h *Hub) Unregister(sessionID string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.conns[sessionID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.conns, sessionID)
		}
	}
}

// Broadcast pushes the full timeline to every subscriber of the session.
// Failed writes only log; the HTTP timeline endpoint remains the fallback.
func (h *Hub) Broadcast(sessionID string, messages []store.ChatMessage) {
	push := TimelinePush{Type: "timeline", Session: sessionID, Messages: messages}

	h.mu.RLock()
	targets := make([]*Subscriber, 0, len(h.conns[sessionID]))
	for _, sub := range h.conns[sessionID] {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		if err := sub.Push(push); err != nil {
			h.log.Warn("websocket push failed", map[string]interface{}{
				"session": sessionID,
				"error":   err.Error(),
			})
		}
	}
}
