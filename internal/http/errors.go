package http

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"opsdeck/internal/opserr"
)

// statusForKind maps the error taxonomy to transport status codes.
func statusForKind(kind opserr.Kind) int {
	switch kind {
	case opserr.KindNotFound:
		return fiber.StatusNotFound
	case opserr.KindValidation:
		return fiber.StatusBadRequest
	case opserr.KindInvalidState:
		return fiber.StatusConflict
	case opserr.KindTimeout:
		return fiber.StatusGatewayTimeout
	case opserr.KindUnavailable:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusBadGateway
	}
}

// respondError logs the full error and returns the sanitized envelope.
// Backend detail (DSNs, driver internals) never reaches the response.
func respondError(c *fiber.Ctx, err error) error {
	kind := opserr.KindOf(err)

	if logger, ok := c.Locals("logger").(*slog.Logger); ok && logger != nil {
		logger.Error("request failed",
			"request_id", c.Locals("request_id"),
			"path", c.Path(),
			"kind", string(kind),
			"error", err.Error(),
		)
	}

	return c.Status(statusForKind(kind)).JSON(ErrorResponse{
		Success: false,
		Code:    string(kind),
		Error:   opserr.SafeMessage(err),
	})
}
