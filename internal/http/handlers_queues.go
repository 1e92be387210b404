package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"opsdeck/internal/metrics"
	"opsdeck/internal/opserr"
	"opsdeck/internal/queue"
)

func queuesListHandler(c *fiber.Ctx) error {
	svc := c.Locals("queues").(QueueService)

	snapshots, err := svc.ListQueues(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(queuesResponse{Success: true, Queues: snapshots})
}

func queueJobsHandler(c *fiber.Ctx) error {
	svc := c.Locals("queues").(QueueService)

	status, err := queue.ParseStatus(c.Query("status", string(queue.StatusWaiting)))
	if err != nil {
		return respondError(c, opserr.Wrap(opserr.KindValidation, err, "invalid status filter"))
	}

	page, pageSize, err := paginationParams(c)
	if err != nil {
		return respondError(c, err)
	}
	if page == 0 {
		// Unset resolves to the first page; echo what was served.
		page = 1
	}

	jobs, err := svc.ListJobs(c.Context(), c.Params("name"), status, page, pageSize)
	if err != nil {
		return respondError(c, err)
	}
	if jobs == nil {
		jobs = []queue.JobRecord{}
	}
	return c.JSON(jobsResponse{Success: true, Jobs: jobs, Page: page})
}

func jobDetailHandler(c *fiber.Ctx) error {
	svc := c.Locals("queues").(QueueService)

	job, err := svc.GetJob(c.Context(), c.Params("name"), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(jobResponse{Success: true, Job: job})
}

func jobRetryHandler(c *fiber.Ctx) error {
	svc := c.Locals("queues").(QueueService)

	job, err := svc.RetryJob(c.Context(), c.Params("name"), c.Params("id"))
	if err != nil {
		metrics.RecordRetry(string(opserr.KindOf(err)))
		return respondError(c, err)
	}

	metrics.RecordRetry("ok")
	return c.JSON(jobResponse{Success: true, Job: job})
}

// paginationParams parses page/pageSize query values. Absent values
// are zero; the services fill defaults and enforce bounds.
func paginationParams(c *fiber.Ctx) (int, int, error) {
	page, err := intQuery(c, "page")
	if err != nil {
		return 0, 0, err
	}
	pageSize, err := intQuery(c, "pageSize")
	if err != nil {
		return 0, 0, err
	}
	return page, pageSize, nil
}

func intQuery(c *fiber.Ctx, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, opserr.New(opserr.KindValidation, "%s must be an integer", name)
	}
	return v, nil
}
