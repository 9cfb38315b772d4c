// Package handlers exposes the conversation over HTTP and websocket. All
// state lives in the per-session orchestrators; handlers translate between
// transport and orchestrator calls.
package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/raphaelfeliz/chat-nov9/internal/common/logger"
	"github.com/raphaelfeliz/chat-nov9/internal/common/observability"
	"github.com/raphaelfeliz/chat-nov9/internal/orchestrator"
	"github.com/raphaelfeliz/chat-nov9/internal/session"
)

// ChatHandler serves the message timeline endpoints.
type ChatHandler struct {
	registry *session.Registry
	hub      *session.Hub
	obs      *observability.Observability
	log      logger.Logger
}

func NewChatHandler(registry *session.Registry, hub *session.Hub, obs *observability.Observability, log logger.Logger) *ChatHandler {
	return &ChatHandler{registry: registry, hub: hub, obs: obs, log: log}
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

// SendMessage runs one user turn and responds with the resulting timeline.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	sessionID := c.Params("session")

	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	o, err := h.registry.Get(c.Context(), sessionID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "session unavailable"})
	}

	start := time.Now()
	if err := o.HandleSendMessage(c.Context(), req.Text); err != nil {
		if errors.Is(err, orchestrator.ErrNotReady) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "session is still booting"})
		}
		h.log.Error("send message failed", map[string]interface{}{"session": sessionID, "error": err.Error()})
		h.recordTurn(c, "error", start)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
	h.recordTurn(c, "ok", start)

	timeline := o.Timeline()
	h.hub.Broadcast(sessionID, timeline)

	return c.JSON(fiber.Map{
		"session":  sessionID,
		"messages": timeline,
	})
}

func (h *ChatHandler) recordTurn(c *fiber.Ctx, outcome string, start time.Time) {
	if h.obs == nil {
		return
	}
	h.obs.RecordTurn(c.Context(), outcome)
	h.obs.RecordTurnDuration(c.Context(), time.Since(start))
}

// Timeline returns the session's full message list.
func (h *ChatHandler) Timeline(c *fiber.Ctx) error {
	sessionID := c.Params("session")

	o, err := h.registry.Get(c.Context(), sessionID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "session unavailable"})
	}

	return c.JSON(fiber.Map{
		"session":  sessionID,
		"messages": o.Timeline(),
	})
}
