package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/shift-desk/internal/api/http/handlers"
	"github.com/spec-kit/shift-desk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Shifts         *handlers.ShiftsHandler
	Comments       *handlers.CommentsHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.SignIn)
	authGroup.Get("/session", cfg.Users.Session)
	authGroup.Post("/logout", cfg.AuthMiddleware.Handle, cfg.Users.SignOut)

	tickets := app.Group("/tickets", cfg.AuthMiddleware.Handle)
	tickets.Get("/", cfg.Tickets.List)
	tickets.Post("/", cfg.Tickets.Create)
	tickets.Post("/bulk", cfg.Tickets.Upsert)
	tickets.Get("/stats", cfg.Tickets.Stats)
	tickets.Get("/:id", cfg.Tickets.Get)
	tickets.Patch("/:id", cfg.Tickets.Update)
	tickets.Delete("/:id", cfg.Tickets.Delete)
	tickets.Get("/:id/comments", cfg.Comments.List)
	tickets.Post("/:id/comments", cfg.Comments.Create)

	comments := app.Group("/comments", cfg.AuthMiddleware.Handle)
	comments.Patch("/:id", cfg.Comments.Update)
	comments.Delete("/:id", cfg.Comments.Delete)

	shifts := app.Group("/shifts", cfg.AuthMiddleware.Handle)
	shifts.Get("/", cfg.Shifts.History)
	shifts.Post("/", cfg.Shifts.Start)
	shifts.Get("/active", cfg.Shifts.Active)
	shifts.Get("/view", cfg.Shifts.View)
	shifts.Post("/:id/end", cfg.Shifts.End)
	shifts.Get("/:id/tickets", cfg.Shifts.Links)
	shifts.Post("/:id/tickets", cfg.Shifts.AddLink)

	shiftTickets := app.Group("/shift-tickets", cfg.AuthMiddleware.Handle)
	shiftTickets.Post("/:id/toggle", cfg.Shifts.Toggle)
	shiftTickets.Patch("/:id/completed", cfg.Shifts.SetCompleted)
	shiftTickets.Patch("/:id/priority", cfg.Shifts.SetPriority)
	shiftTickets.Delete("/:id", cfg.Shifts.RemoveLink)
}
