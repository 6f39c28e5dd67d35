package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-proposal-api/internal/config"
	"github.com/noah-isme/gema-proposal-api/internal/handler"
	"github.com/noah-isme/gema-proposal-api/internal/middleware"
	"github.com/noah-isme/gema-proposal-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ProposalHandler  *handler.ProposalHandler
	AssistantHandler *handler.AssistantHandler
	// ServiceTokenMiddleware guards /api/v1. Nil leaves the API open, which
	// also disables the role check on corpus writes.
	ServiceTokenMiddleware fiber.Handler
	EvaluateRateLimit      fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	guards := []fiber.Handler{func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	}}
	var writeGuards []fiber.Handler
	if deps.ServiceTokenMiddleware != nil {
		guards = append(guards, deps.ServiceTokenMiddleware)
		writeGuards = append(writeGuards, middleware.RequireRole("admin", "teacher"))
	}
	api := app.Group("/api/v1", guards...)

	if deps.ProposalHandler != nil {
		proposals := api.Group("/proposals")
		if deps.EvaluateRateLimit != nil {
			proposals.Use("/evaluate", deps.EvaluateRateLimit)
		}
		deps.ProposalHandler.Register(proposals, writeGuards...)
	}

	if deps.AssistantHandler != nil {
		deps.AssistantHandler.Register(api.Group("/ai"))
	}
}
