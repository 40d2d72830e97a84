package models

import "time"

// Ingestion job states.
const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// IngestJob tracks one background ingestion run so callers can observe its
// progress instead of firing into a detached goroutine.
type IngestJob struct {
	ID          string     `json:"id"`
	State       string     `json:"state"`
	FilesTotal  int        `json:"files_total"`
	FilesFailed int        `json:"files_failed"`
	Entries     int        `json:"entries"`
	Error       string     `json:"error,omitempty"`
	QueuedAt    time.Time  `json:"queued_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}
