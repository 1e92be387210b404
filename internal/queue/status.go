package queue

import "fmt"

// Status is the closed set of job lifecycle states exposed by the
// inspector. The queue backend's own state machine is translated into
// this set at the client boundary; anything it reports outside the set
// is a data error, never passed through.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusDelayed   Status = "delayed"
)

// AllStatuses lists every valid status in a fixed order, used when
// assembling per-queue counts.
var AllStatuses = []Status{
	StatusWaiting,
	StatusActive,
	StatusCompleted,
	StatusFailed,
	StatusDelayed,
}

// ParseStatus maps a raw string onto the closed status set.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusWaiting, StatusActive, StatusCompleted, StatusFailed, StatusDelayed:
		return Status(raw), nil
	}
	return "", fmt.Errorf("unknown job status %q", raw)
}
