package main

import (
	"log/slog"
	"strconv"

	"github.com/caseway/caseway/pkg/engine"
	"github.com/caseway/caseway/pkg/eventbus"
	"github.com/caseway/caseway/pkg/locks"
	"github.com/caseway/caseway/pkg/persistence"
	"github.com/caseway/caseway/pkg/registry"
	"github.com/caseway/caseway/pkg/services"
	"github.com/caseway/caseway/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	locker      locks.Locker
	tracer      trace.Tracer
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventBus,
	locker locks.Locker,
	tracer trace.Tracer,
) *API {
	return &API{
		persistence: persistence,
		logger:      logger,
		registry:    registry,
		eventBus:    eventBus,
		locker:      locker,
		tracer:      tracer,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	eng := engine.New(engine.Config{
		Persistence: a.persistence,
		Registry:    a.registry,
		EventBus:    a.eventBus,
		Locker:      a.locker,
		Logger:      a.logger,
		Tracer:      a.tracer,
	})

	definitionService := services.NewDefinition(a.persistence)
	runtimeService := services.NewRuntime(a.persistence, eng)

	handlers := web.NewAPIHandlers(definitionService, runtimeService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Caseway API")
	})

	d := app.Group("/definitions")
	d.Get("/", handlers.GetDefinitions)
	d.Post("/", handlers.DeployDefinition)
	d.Get("/:id", handlers.GetDefinition)
	d.Delete("/:id", handlers.DeleteDefinition)
	d.Post("/:id/instances", handlers.StartInstance)

	i := app.Group("/instances")
	i.Get("/", handlers.GetInstances)
	i.Get("/:id", handlers.GetInstance)
	i.Get("/:id/history", handlers.GetInstanceHistory)
	i.Get("/:id/tasks", handlers.GetInstanceTasks)
	i.Post("/:id/terminate", handlers.TerminateInstance)
	i.Post("/:id/suspend", handlers.SuspendInstance)
	i.Post("/:id/resume", handlers.ResumeInstance)

	t := app.Group("/tasks")
	t.Get("/:id", handlers.GetTask)
	t.Post("/:id/claim", handlers.ClaimTask)
	t.Post("/:id/release", handlers.ReleaseTask)
	t.Post("/:id/complete", handlers.CompleteTask)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
