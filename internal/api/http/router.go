package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Templates      *handlers.TemplatesHandler
	Tickets        *handlers.TicketsHandler
	Messages       *handlers.MessagesHandler
	Presence       *handlers.PresenceHandler
	Admin          *handlers.AdminHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	authn := cfg.AuthMiddleware.Handle
	app.Get("/me", authn, cfg.Users.Me)

	templates := app.Group("/templates", authn)
	templates.Get("/", cfg.Templates.List)
	templates.Get("/:id", cfg.Templates.Get)
	templates.Post("/", auth.RequireRole(domain.RoleAdmin), cfg.Templates.Create)
	templates.Put("/:id", auth.RequireRole(domain.RoleAdmin), cfg.Templates.Update)

	tickets := app.Group("/tickets", authn)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Put("/:id", cfg.Tickets.UpdateTicket)
	tickets.Post("/:id/revoke", cfg.Tickets.RevokeTicket)
	tickets.Get("/:id/audit", cfg.Tickets.AuditTrail)
	tickets.Put("/:id/assignment", auth.RequireRole(domain.RoleAdmin), cfg.Tickets.AssignTicket)
	tickets.Get("/:id/messages", cfg.Tickets.Messages)

	messages := app.Group("/messages", authn)
	messages.Post("/", cfg.Messages.Send)
	messages.Get("/:userId", cfg.Messages.Conversation)
	messages.Post("/:userId/read", cfg.Messages.MarkRead)

	app.Get("/presence/:userId", authn, cfg.Presence.Get)

	admin := app.Group("/admin", authn, auth.RequireRole(domain.RoleAdmin))
	admin.Post("/audit/repair", cfg.Admin.RepairAudit)
	admin.Post("/messages/correlate", cfg.Admin.CorrelateMessages)
}
