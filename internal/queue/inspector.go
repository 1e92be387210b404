package queue

import (
	"context"
	"errors"

	"opsdeck/internal/config"
	"opsdeck/internal/opserr"
)

// Inspector exposes read access to the configured queues plus the one
// operator-triggered mutation (retry). It holds no state of its own;
// every call reads the backend fresh.
type Inspector struct {
	client Client
	queues []string
	pag    config.PaginationConfig
}

func NewInspector(client Client, queues []string, pag config.PaginationConfig) *Inspector {
	return &Inspector{client: client, queues: queues, pag: pag}
}

// QueueNames returns the configured queue names. Used by the health
// aggregator's queue probe.
func (i *Inspector) QueueNames() []string {
	out := make([]string, len(i.queues))
	copy(out, i.queues)
	return out
}

func (i *Inspector) knownQueue(name string) bool {
	for _, q := range i.queues {
		if q == name {
			return true
		}
	}
	return false
}

// ListQueues reads a snapshot of every configured queue.
func (i *Inspector) ListQueues(ctx context.Context) ([]Snapshot, error) {
	snapshots := make([]Snapshot, 0, len(i.queues))
	for _, name := range i.queues {
		counts, paused, err := i.client.Counts(ctx, name)
		if err != nil {
			return nil, opserr.Wrap(opserr.KindUnavailable, err, "queue backend unreachable")
		}
		snapshots = append(snapshots, Snapshot{Name: name, Counts: counts, Paused: paused})
	}
	return snapshots, nil
}

// ListJobs returns one page of jobs in the given status. An empty page
// is a normal result, not an error.
func (i *Inspector) ListJobs(ctx context.Context, queueName string, status Status, page, pageSize int) ([]JobRecord, error) {
	if !i.knownQueue(queueName) {
		return nil, opserr.New(opserr.KindNotFound, "queue %q is not configured", queueName)
	}
	page, pageSize, err := i.pag.Resolve(page, pageSize)
	if err != nil {
		return nil, opserr.Wrap(opserr.KindValidation, err, "invalid pagination")
	}

	offset := int64(page-1) * int64(pageSize)
	records, err := i.client.Jobs(ctx, queueName, status, offset, int64(pageSize))
	if err != nil {
		if errors.Is(err, ErrBadJobState) {
			return nil, opserr.Wrap(opserr.KindExecution, err, "queue backend returned an unrecognized job state")
		}
		return nil, opserr.Wrap(opserr.KindUnavailable, err, "queue backend unreachable")
	}
	return records, nil
}

// GetJob returns a single job with its current status.
func (i *Inspector) GetJob(ctx context.Context, queueName, jobID string) (JobRecord, error) {
	if !i.knownQueue(queueName) {
		return JobRecord{}, opserr.New(opserr.KindNotFound, "queue %q is not configured", queueName)
	}
	rec, err := i.client.Job(ctx, queueName, jobID)
	if err != nil {
		switch {
		case errors.Is(err, ErrJobNotFound):
			return JobRecord{}, opserr.New(opserr.KindNotFound, "job %q not found in queue %q", jobID, queueName)
		case errors.Is(err, ErrBadJobState):
			return JobRecord{}, opserr.Wrap(opserr.KindExecution, err, "queue backend returned an unrecognized job state")
		default:
			return JobRecord{}, opserr.Wrap(opserr.KindUnavailable, err, "queue backend unreachable")
		}
	}
	return rec, nil
}

// RetryJob moves a failed job back to waiting. Retry is only valid from
// the failed state; a job moved off failed by a concurrent actor fails
// with a state conflict so callers know to stop their retry loop.
func (i *Inspector) RetryJob(ctx context.Context, queueName, jobID string) (JobRecord, error) {
	if !i.knownQueue(queueName) {
		return JobRecord{}, opserr.New(opserr.KindNotFound, "queue %q is not configured", queueName)
	}

	rec, err := i.client.Retry(ctx, queueName, jobID)
	if err != nil {
		switch {
		case errors.Is(err, ErrJobNotFound):
			return JobRecord{}, opserr.New(opserr.KindNotFound, "job %q not found in queue %q", jobID, queueName)
		case errors.Is(err, ErrJobNotFailed):
			return JobRecord{}, opserr.New(opserr.KindInvalidState, "job %q is not in the failed state", jobID)
		default:
			return JobRecord{}, opserr.Wrap(opserr.KindUnavailable, err, "queue backend unreachable")
		}
	}
	return rec, nil
}
