package http

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"opsdeck/internal/config"
	"opsdeck/internal/metrics"
	"opsdeck/internal/store"
)

// Deps carries the services the handlers depend on. Every field is an
// interface (except the auth store) so handler tests can stub them.
type Deps struct {
	Store    *store.Store
	Queues   QueueService
	Health   HealthService
	Explorer ExplorerService
	Gateway  GatewayService
}

type Server struct {
	app    *fiber.App
	config *config.Config
	logger *slog.Logger
}

func NewServer(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	app := fiber.New()

	// Inject services into context for handlers
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("config", cfg)
		c.Locals("queues", deps.Queues)
		c.Locals("health", deps.Health)
		c.Locals("explorer", deps.Explorer)
		c.Locals("gateway", deps.Gateway)
		return c.Next()
	})

	// Request logging + metrics middleware
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		reqID := c.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Locals("request_id", reqID)
		if logger != nil {
			c.Locals("logger", logger)
		}

		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()
		method := c.Method()
		path := c.Path()

		metrics.RecordRequest(method, path, status, latency.Milliseconds())

		if logger != nil {
			logger.Info("request",
				"request_id", reqID,
				"method", method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}

		return err
	})

	// Shallow health: process is up. The deep dependency check lives at
	// /admin/health behind auth.
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Prometheus-style metrics endpoint
	app.Get("/metrics", func(c *fiber.Ctx) error {
		c.Type("text/plain")
		return c.SendString(metrics.Export())
	})

	admin := app.Group("/admin", authMiddleware(cfg, deps.Store), adminOnlyMiddleware(cfg))
	registerAdminRoutes(admin)

	return &Server{app: app, config: cfg, logger: logger}
}

// registerAdminRoutes wires the admin operations surface.
func registerAdminRoutes(group fiber.Router) {
	group.Get("/queues", queuesListHandler)
	group.Get("/queues/:name/jobs", queueJobsHandler)
	group.Get("/queues/:name/jobs/:id", jobDetailHandler)
	group.Post("/queues/:name/jobs/:id/retry", jobRetryHandler)

	group.Get("/health", healthHandler)

	group.Get("/tables", tablesListHandler)
	group.Get("/tables/:name/rows", tableRowsHandler)
	group.Post("/query", queryHandler)
}

func (s *Server) Listen() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	if s.logger != nil {
		s.logger.Info("listening", "addr", addr)
	}
	return s.app.Listen(addr)
}

// Shutdown drains in-flight requests before returning.
func (s *Server) Shutdown(ctx context.Context) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		return s.app.Shutdown()
	}
	return s.app.ShutdownWithTimeout(time.Until(deadline))
}
