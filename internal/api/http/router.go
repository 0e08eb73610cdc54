package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/chamados-service/internal/api/http/handlers"
	"github.com/spec-kit/chamados-service/internal/auth"
	"github.com/spec-kit/chamados-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	tickets := app.Group("/chamados", cfg.AuthMiddleware.Handle)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	// Registered before /:id so "kpis" is not parsed as a ticket id.
	tickets.Get("/kpis", auth.RequireAnalyst(), cfg.Tickets.Kpis)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/history", auth.RequireAnalyst(), cfg.Tickets.TicketHistory)
	tickets.Post("/:id/claim", auth.RequireAnalyst(), cfg.Tickets.ClaimTicket)
	tickets.Post("/:id/conclude", auth.RequireAnalyst(), cfg.Tickets.ConcludeTicket)
	tickets.Post("/:id/reject", auth.RequireAnalyst(), cfg.Tickets.RejectTicket)
	tickets.Delete("/:id", auth.RequireRole(domain.ActorRoleAdmin), cfg.Tickets.DeleteTicket)
}
