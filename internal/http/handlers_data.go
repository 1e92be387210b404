package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"opsdeck/internal/metrics"
	"opsdeck/internal/opserr"
)

func tablesListHandler(c *fiber.Ctx) error {
	svc := c.Locals("explorer").(ExplorerService)

	tables, err := svc.ListTables(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(tablesResponse{Success: true, Tables: tables})
}

func tableRowsHandler(c *fiber.Ctx) error {
	svc := c.Locals("explorer").(ExplorerService)

	page, pageSize, err := paginationParams(c)
	if err != nil {
		return respondError(c, err)
	}

	result, err := svc.GetTableRows(c.Context(), c.Params("name"), page, pageSize)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(rowsResponse{Success: true, Result: result})
}

func queryHandler(c *fiber.Ctx) error {
	svc := c.Locals("gateway").(GatewayService)

	var req queryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Success: false,
			Code:    "BAD_REQUEST_INVALID_JSON",
			Error:   "Bad request, malformed JSON",
		})
	}
	if strings.TrimSpace(req.SQL) == "" {
		return respondError(c, opserr.New(opserr.KindValidation, "sql is required"))
	}

	result, err := svc.ExecuteReadOnly(c.Context(), req.SQL)
	if err != nil {
		metrics.RecordQuery(strings.ToLower(string(opserr.KindOf(err))), 0)
		return respondError(c, err)
	}

	metrics.RecordQuery("ok", result.RowCount)
	return c.JSON(rowsResponse{Success: true, Result: result})
}
