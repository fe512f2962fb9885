package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/examguard-api/internal/config"
	"github.com/noah-isme/examguard-api/internal/handler"
	"github.com/noah-isme/examguard-api/internal/middleware"
	"github.com/noah-isme/examguard-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SeatingHandler   *handler.SeatingHandler
	CheckinHandler   *handler.CheckinHandler
	ViolationHandler *handler.ViolationHandler
	ExamEventHandler *handler.ExamEventHandler
	HealthProbes     map[string]handler.HealthProbe
	JWTMiddleware    fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))
	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	admin := app.Group("/api/admin", jwtMiddleware, middleware.RequireRole(middleware.RoleAdmin))
	if deps.SeatingHandler != nil {
		deps.SeatingHandler.Register(admin)
	}
	if deps.ViolationHandler != nil {
		deps.ViolationHandler.RegisterAdmin(admin)
	}

	proctor := app.Group("/api/proctor", jwtMiddleware, middleware.RequireAuth(middleware.AuthOptions{Role: middleware.AuthRoleProctor}))
	if deps.CheckinHandler != nil {
		deps.CheckinHandler.Register(proctor)
	}
	if deps.ViolationHandler != nil {
		deps.ViolationHandler.RegisterProctor(proctor)
	}
	if deps.ExamEventHandler != nil {
		deps.ExamEventHandler.Register(proctor)
	}
}
