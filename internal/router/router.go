package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-program-api/internal/config"
	"github.com/noah-isme/gema-program-api/internal/handler"
	"github.com/noah-isme/gema-program-api/internal/middleware"
	"github.com/noah-isme/gema-program-api/internal/observability"
	"github.com/noah-isme/gema-program-api/internal/service"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SubmissionHandler   *handler.SubmissionHandler
	EvaluationHandler   *handler.EvaluationHandler
	RubricHandler       *handler.RubricHandler
	TrackingHandler     *handler.TrackingHandler
	NotificationHandler *handler.NotificationHandler
	ActivityHandler     *handler.ActivityHandler
	SeedHandler         *handler.SeedHandler
	JWTMiddleware       fiber.Handler
	TenantMiddleware    fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	// Seeding authenticates with its own token, so it sits before the JWT guard.
	if deps.SeedHandler != nil {
		deps.SeedHandler.Register(api.Group("/seed"))
	}

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = middleware.JWTProtected(cfg.JWTSecret)
	}
	tenantMiddleware := deps.TenantMiddleware
	if tenantMiddleware == nil {
		tenantMiddleware = middleware.TenantContext()
	}

	secured := api.Group("", jwtMiddleware, tenantMiddleware)

	if deps.SubmissionHandler != nil {
		deps.SubmissionHandler.Register(secured)
	}
	if deps.EvaluationHandler != nil {
		deps.EvaluationHandler.Register(secured)
	}
	if deps.RubricHandler != nil {
		deps.RubricHandler.Register(secured)
	}
	if deps.TrackingHandler != nil {
		deps.TrackingHandler.Register(secured)
	}
	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(secured.Group("/notifications"))
	}
	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(secured.Group("/activity", middleware.RequireRole(service.RoleTenantAdmin, service.RoleOrganizer)))
	}
}
