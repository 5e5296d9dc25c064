package web

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

// NewApp builds the fiber application with all routes mounted.
func NewApp(h *APIHandlers) *fiber.App {
	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("dagrun API")
	})

	w := app.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Post("/", h.CreateWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Patch("/:id", h.UpdateWorkflow)
	w.Delete("/:id", h.DeleteWorkflow)
	w.Post("/:id/publish", h.PublishWorkflow)
	w.Post("/:id/execute", h.ExecuteWorkflow)
	w.Post("/:id/enqueue", h.EnqueueWorkflow)

	t := app.Group("/tasks")
	t.Get("/:id", h.GetTask)
	t.Get("/:id/details", h.GetTaskDetails)
	t.Post("/:id/cancel", h.CancelTask)

	e := app.Group("/executions")
	e.Get("/:id", h.GetExecution)
	e.Get("/:id/events", h.StreamExecutionEvents)

	app.Post("/admin/reconcile", h.Reconcile)
	app.Get("/health", h.HealthCheck)

	return app
}
