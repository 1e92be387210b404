package queue

import (
	"encoding/json"
	"time"
)

// Snapshot is a point-in-time view of one queue. It is derived on each
// read and never persisted.
type Snapshot struct {
	Name   string           `json:"name"`
	Counts map[Status]int64 `json:"counts"`
	Paused bool             `json:"paused"`
}

// JobRecord is one unit of work as the backend currently sees it.
// FailedReason is set only when Status is failed.
type JobRecord struct {
	ID           string          `json:"id"`
	Status       Status          `json:"status"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	AttemptsMade int             `json:"attemptsMade"`
	FailedReason string          `json:"failedReason,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	ProcessedAt  *time.Time      `json:"processedAt,omitempty"`
}
