package handlers

import (
	"context"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/raphaelfeliz/chat-nov9/internal/common/logger"
	"github.com/raphaelfeliz/chat-nov9/internal/session"
)

const wsReadDeadline = 60 * time.Second

// WSHandler pushes timeline updates to connected clients. The socket is
// push-only: clients send messages over HTTP and receive updates here, so
// inbound frames are only read for ping/pong keepalive.
type WSHandler struct {
	registry *session.Registry
	hub      *session.Hub
	log      logger.Logger
}

func NewWSHandler(registry *session.Registry, hub *session.Hub, log logger.Logger) *WSHandler {
	return &WSHandler{registry: registry, hub: hub, log: log}
}

// Upgrade gates the route to websocket upgrade requests.
func (h *WSHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Serve boots the session, sends the current timeline as the first frame,
// then keeps the connection registered until the client goes away.
func (h *WSHandler) Serve(conn *websocket.Conn) {
	sessionID := conn.Params("session")

	o, err := h.registry.Get(context.Background(), sessionID)
	if err != nil {
		h.log.Error("websocket session boot failed", map[string]interface{}{
			"session": sessionID,
			"error":   err.Error(),
		})
		conn.Close()
		return
	}

	sub := h.hub.Register(sessionID, conn)
	defer func() {
		h.hub.Unregister(sessionID, conn)
		conn.Close()
	}()

	// The greeting shares the subscriber's write lock: a broadcast firing
	// between Register and this frame must not interleave with it.
	if err := sub.Push(session.TimelinePush{Type: "timeline", Session: sessionID, Messages: o.Timeline()}); err != nil {
		return
	}

	conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	}
}
