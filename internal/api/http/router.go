package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/servicedesk/internal/api/http/handlers"
	"github.com/spec-kit/servicedesk/internal/auth"
	"github.com/spec-kit/servicedesk/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Agents         *handlers.AgentsHandler
	Tickets        *handlers.TicketsHandler
	Alerts         *handlers.AlertsHandler
	SLA            *handlers.SLAHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/users/register", cfg.Users.Register)
	authGroup.Post("/users/login", cfg.Users.Login)
	authGroup.Post("/agents/login", cfg.Agents.Login)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	tickets.Post("", auth.RequireUser(), cfg.Tickets.Create)
	tickets.Get("", cfg.Tickets.List)
	tickets.Get("/:key", cfg.Tickets.Get)
	tickets.Patch("/:key", auth.RequireAgentRole(), cfg.Tickets.Update)
	tickets.Post("/:key/messages", cfg.Tickets.AddMessage)
	tickets.Get("/:key/activity", auth.RequireAgentRole(), cfg.Tickets.ListActivity)
	tickets.Delete("/:key", auth.RequireAgentRole(domain.AgentRoleSupervisor), cfg.Tickets.Delete)

	alerts := app.Group("/alerts", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	alerts.Get("", cfg.Alerts.List)
	alerts.Get("/unread-count", cfg.Alerts.UnreadCount)
	alerts.Post("/read-all", cfg.Alerts.MarkAllRead)
	alerts.Post("/:id/read", cfg.Alerts.MarkRead)

	agents := app.Group("/agents", cfg.AuthMiddleware.Handle)
	agents.Post("", auth.RequireAgentRole(domain.AgentRoleSupervisor), cfg.Agents.Create)
	agents.Post("/:id/deactivate", auth.RequireAgentRole(domain.AgentRoleSupervisor), cfg.Agents.Deactivate)
	agents.Get("/workload", auth.RequireAgentRole(), cfg.Agents.Workload)

	admin := app.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireAgentRole(domain.AgentRoleSupervisor))
	admin.Post("/sla/sweep", cfg.SLA.RunSweep)
}
