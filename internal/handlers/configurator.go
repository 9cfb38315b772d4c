package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/raphaelfeliz/chat-nov9/internal/catalog"
	stderrors "github.com/raphaelfeliz/chat-nov9/internal/common/errors"
	"github.com/raphaelfeliz/chat-nov9/internal/common/logger"
	"github.com/raphaelfeliz/chat-nov9/internal/orchestrator"
	"github.com/raphaelfeliz/chat-nov9/internal/schema"
	"github.com/raphaelfeliz/chat-nov9/internal/session"
)

// ConfiguratorHandler serves manual facet selection and configuration
// state.
type ConfiguratorHandler struct {
	registry *session.Registry
	hub      *session.Hub
	log      logger.Logger
}

func NewConfiguratorHandler(registry *session.Registry, hub *session.Hub, log logger.Logger) *ConfiguratorHandler {
	return &ConfiguratorHandler{registry: registry, hub: hub, log: log}
}

type selectFacetRequest struct {
	Facet string `json:"facet"`
	Value string `json:"value"`
}

type productView struct {
	SKU   string `json:"sku"`
	Slug  string `json:"slug"`
	Image string `json:"image"`
	URL   string `json:"url"`
}

type questionView struct {
	Facet    string          `json:"facet"`
	Question string          `json:"question"`
	Options  []schema.Option `json:"options"`
}

type stateView struct {
	Session       string                `json:"session"`
	Assignment    map[schema.Key]string `json:"assignment"`
	Question      *questionView         `json:"question,omitempty"`
	FinalProducts []productView         `json:"final_products,omitempty"`
	ComposedLabel string                `json:"composed_label,omitempty"`
	Inconsistent  bool                  `json:"inconsistent,omitempty"`
}

// Select applies one option click and responds with the updated state.
func (h *ConfiguratorHandler) Select(c *fiber.Ctx) error {
	sessionID := c.Params("session")

	var req selectFacetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	o, err := h.registry.Get(c.Context(), sessionID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "session unavailable"})
	}

	if err := o.SelectFacet(schema.Key(req.Facet), req.Value); err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrNotReady):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "session is still booting"})
		case stderrors.Code(err) == stderrors.ErrCodeInputRejected:
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
		default:
			h.log.Error("facet select failed", map[string]interface{}{"session": sessionID, "error": err.Error()})
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
		}
	}

	h.hub.Broadcast(sessionID, o.Timeline())
	return c.JSON(h.stateViewFor(sessionID, o))
}

// Reset clears the assignment and responds with the initial state.
func (h *ConfiguratorHandler) Reset(c *fiber.Ctx) error {
	sessionID := c.Params("session")

	o, err := h.registry.Get(c.Context(), sessionID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "session unavailable"})
	}

	if err := o.ResetConfiguration(); err != nil {
		if errors.Is(err, orchestrator.ErrNotReady) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "session is still booting"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}

	h.hub.Broadcast(sessionID, o.Timeline())
	return c.JSON(h.stateViewFor(sessionID, o))
}

// State returns the current configuration snapshot.
func (h *ConfiguratorHandler) State(c *fiber.Ctx) error {
	sessionID := c.Params("session")

	o, err := h.registry.Get(c.Context(), sessionID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "session unavailable"})
	}

	return c.JSON(h.stateViewFor(sessionID, o))
}

func (h *ConfiguratorHandler) stateViewFor(sessionID string, o *orchestrator.Orchestrator) stateView {
	snap := o.ConfigurationState()

	view := stateView{
		Session:      sessionID,
		Assignment:   snap.Assignment,
		Inconsistent: snap.Err != nil,
	}

	if snap.Question != nil {
		view.Question = &questionView{
			Facet:    string(snap.Question.Facet),
			Question: snap.Question.Question,
			Options:  snap.Question.Options,
		}
	}

	if len(snap.FinalProducts) > 0 {
		view.ComposedLabel = snap.ComposedLabel
		view.FinalProducts = make([]productView, 0, len(snap.FinalProducts))
		for _, p := range snap.FinalProducts {
			view.FinalProducts = append(view.FinalProducts, toProductView(p))
		}
	}

	return view
}

func toProductView(p catalog.Product) productView {
	return productView{SKU: p.SKU, Slug: p.Slug, Image: p.Image, URL: p.URL()}
}
