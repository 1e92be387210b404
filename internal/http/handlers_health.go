package http

import (
	"github.com/gofiber/fiber/v2"

	"opsdeck/internal/health"
	"opsdeck/internal/metrics"
)

func healthHandler(c *fiber.Ctx) error {
	svc := c.Locals("health").(HealthService)

	report := svc.Check(c.Context())
	for name, r := range report.Probes {
		metrics.RecordProbe(name, string(r.Status), r.LatencyMs)
	}

	status := fiber.StatusOK
	if report.Status == health.StatusUnhealthy {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(healthResponse{Success: true, Health: report})
}
