package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-bot/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-bot/internal/auth"
	apperrors "github.com/spec-kit/helpdesk-bot/pkg/util"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health       *handlers.HealthHandler
	System       *handlers.SystemHandler
	Tickets      *handlers.TicketsHandler
	Admins       *handlers.AdminsHandler
	Interactions *handlers.InteractionsHandler
	Auth         *auth.Middleware
	// PlatformToken authenticates inbound control callbacks.
	PlatformToken string
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.System.Login)

	// Platform control callbacks authenticate with the platform token, not
	// operator credentials.
	app.Post("/interactions", requirePlatformToken(cfg.PlatformToken), cfg.Interactions.Handle)

	protected := app.Group("", cfg.Auth.Handle)

	protected.Post("/system/init", cfg.System.Init)
	protected.Get("/system/stats", cfg.System.Stats)
	protected.Post("/system/reconcile", cfg.System.Reconcile)

	protected.Get("/tickets", cfg.Tickets.List)
	protected.Post("/tickets", cfg.Tickets.Create)
	protected.Get("/tickets/:id", cfg.Tickets.Get)
	protected.Post("/tickets/:id/accept", cfg.Tickets.Accept)
	protected.Post("/tickets/:id/members", cfg.Tickets.AddMember)
	protected.Post("/tickets/:id/close", cfg.Tickets.Close)
	protected.Post("/tickets/:id/export", cfg.Tickets.Export)
	protected.Post("/exports/run", cfg.Tickets.ExportClosed)

	protected.Get("/admins", cfg.Admins.List)
	protected.Post("/admins", cfg.Admins.Add)
	protected.Delete("/admins", cfg.Admins.Remove)
}

func requirePlatformToken(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token == "" || c.Get("X-Platform-Token") != token {
			return apperrors.NewUnauthorized("invalid platform token")
		}
		return c.Next()
	}
}
