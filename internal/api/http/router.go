package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spec-kit/sow-service/internal/api/http/handlers"
	"github.com/spec-kit/sow-service/internal/auth"
	"github.com/spec-kit/sow-service/internal/domain"
	"github.com/spec-kit/sow-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	ScopesOfWork   *handlers.ScopesOfWorkHandler
	AuthMiddleware *auth.AuthMiddleware
	// Metrics, when set, is served at /metrics.
	Metrics *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Metrics.Registry(), promhttp.HandlerOpts{})))
	}

	managers := auth.RequireRole(domain.RoleLandlord, domain.RoleAdmin)
	workers := auth.RequireRole(domain.RoleContractor, domain.RoleLandlord, domain.RoleAdmin)

	sow := app.Group("/scopes-of-work", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	sow.Get("/", cfg.ScopesOfWork.List)
	sow.Post("/", managers, cfg.ScopesOfWork.Create)
	sow.Get("/:id", cfg.ScopesOfWork.Get)
	sow.Delete("/:id", managers, cfg.ScopesOfWork.Delete)

	sow.Post("/:id/assign-contractor", managers, cfg.ScopesOfWork.AssignContractor)
	sow.Post("/:id/tickets", managers, cfg.ScopesOfWork.AddTicket)
	sow.Delete("/:id/tickets/:ticketId", managers, cfg.ScopesOfWork.RemoveTicket)
	sow.Post("/:id/close", managers, cfg.ScopesOfWork.Close)

	sow.Post("/:id/accept", workers, cfg.ScopesOfWork.Accept)
	sow.Post("/:id/refuse", workers, cfg.ScopesOfWork.Refuse)
	sow.Post("/:id/review", workers, cfg.ScopesOfWork.Review)

	sow.Get("/:id/history", cfg.ScopesOfWork.History)
	sow.Get("/:id/invoices", cfg.ScopesOfWork.Invoices)
	sow.Get("/:id/threads", cfg.ScopesOfWork.Threads)
}
