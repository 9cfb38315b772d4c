// Package app assembles the HTTP surface: the shared dependency bundle and
// the route table.
package app

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/raphaelfeliz/chat-nov9/internal/common/config"
	"github.com/raphaelfeliz/chat-nov9/internal/common/logger"
	"github.com/raphaelfeliz/chat-nov9/internal/common/observability"
	"github.com/raphaelfeliz/chat-nov9/internal/session"
)

// App bundles the dependencies the handlers share. Obs may be nil in tests.
type App struct {
	Config   *config.Config
	Log      logger.Logger
	Registry *session.Registry
	Hub      *session.Hub
	Obs      *observability.Observability
}

// NewServer builds the fiber app with routes registered.
func NewServer(a *App) *fiber.App {
	srv := fiber.New(fiber.Config{
		AppName:               a.Config.App.Name,
		DisableStartupMessage: true,
		ReadTimeout:           secondsOrZero(a.Config.Server.ReadTimeout),
		WriteTimeout:          secondsOrZero(a.Config.Server.WriteTimeout),
	})

	SetupRoutes(srv, a)
	return srv
}

func secondsOrZero(s int) time.Duration {
	if s <= 0 {
		return 0
	}
	return time.Duration(s) * time.Second
}
