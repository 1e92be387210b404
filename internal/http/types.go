package http

import (
	"context"

	"opsdeck/internal/explorer"
	"opsdeck/internal/health"
	"opsdeck/internal/queue"
)

// ErrorResponse is the error envelope for every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error"`
}

// QueueService is the slice of the queue inspector the handlers use.
type QueueService interface {
	ListQueues(ctx context.Context) ([]queue.Snapshot, error)
	ListJobs(ctx context.Context, queueName string, status queue.Status, page, pageSize int) ([]queue.JobRecord, error)
	GetJob(ctx context.Context, queueName, jobID string) (queue.JobRecord, error)
	RetryJob(ctx context.Context, queueName, jobID string) (queue.JobRecord, error)
}

// HealthService produces a fresh report per call.
type HealthService interface {
	Check(ctx context.Context) health.Report
}

// ExplorerService lists tables and pages rows.
type ExplorerService interface {
	ListTables(ctx context.Context) ([]explorer.TableDescriptor, error)
	GetTableRows(ctx context.Context, table string, page, pageSize int) (explorer.QueryResult, error)
}

// GatewayService executes read-only SQL.
type GatewayService interface {
	ExecuteReadOnly(ctx context.Context, sql string) (explorer.QueryResult, error)
}

type queuesResponse struct {
	Success bool             `json:"success"`
	Queues  []queue.Snapshot `json:"queues"`
}

type jobsResponse struct {
	Success bool              `json:"success"`
	Jobs    []queue.JobRecord `json:"jobs"`
	Page    int               `json:"page"`
}

type jobResponse struct {
	Success bool            `json:"success"`
	Job     queue.JobRecord `json:"job"`
}

type tablesResponse struct {
	Success bool                       `json:"success"`
	Tables  []explorer.TableDescriptor `json:"tables"`
}

type rowsResponse struct {
	Success bool                 `json:"success"`
	Result  explorer.QueryResult `json:"result"`
}

type queryRequest struct {
	SQL string `json:"sql"`
}

type healthResponse struct {
	Success bool          `json:"success"`
	Health  health.Report `json:"health"`
}
