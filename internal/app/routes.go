package app

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/raphaelfeliz/chat-nov9/internal/handlers"
)

// SetupRoutes registers every route on the fiber app.
func SetupRoutes(app *fiber.App, a *App) {
	metricsHandler := handlers.NewMetricsHandler()
	app.Get("/metrics", metricsHandler.GetMetrics)

	app.Get("/health", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"status":    "ok",
			"timestamp": time.Now(),
			"sessions":  a.Registry.Len(),
		})
	})

	api := app.Group("/api")
	setupChatRoutes(api, a)
	setupConfiguratorRoutes(api, a)
	setupWebSocketRoutes(app, a)
}

func setupChatRoutes(api fiber.Router, a *App) {
	chatHandler := handlers.NewChatHandler(a.Registry, a.Hub, a.Obs, a.Log)

	api.Post("/chat/:session/messages", chatHandler.SendMessage)
	api.Get("/chat/:session/timeline", chatHandler.Timeline)
}

func setupConfiguratorRoutes(api fiber.Router, a *App) {
	configuratorHandler := handlers.NewConfiguratorHandler(a.Registry, a.Hub, a.Log)

	api.Post("/configurator/:session/select", configuratorHandler.Select)
	api.Post("/configurator/:session/reset", configuratorHandler.Reset)
	api.Get("/configurator/:session", configuratorHandler.State)
}

func setupWebSocketRoutes(app *fiber.App, a *App) {
	wsHandler := handlers.NewWSHandler(a.Registry, a.Hub, a.Log)

	app.Use("/ws/:session", wsHandler.Upgrade)
	app.Get("/ws/:session", websocket.New(wsHandler.Serve, websocket.Config{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}))
}
