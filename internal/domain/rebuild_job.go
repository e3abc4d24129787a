package domain

import "time"

// RebuildJobStatus represents the status of a rebuild job
type RebuildJobStatus string

const (
	RebuildJobStatusPending    RebuildJobStatus = "pending"
	RebuildJobStatusProcessing RebuildJobStatus = "processing"
	RebuildJobStatusCompleted  RebuildJobStatus = "completed"
	RebuildJobStatusFailed     RebuildJobStatus = "failed"
)

// RebuildJob is a durable marker that a cache key needs a context rebuild.
// Jobs survive process restarts, so a crash between a document mutation and
// its rebuild cannot strand a stale bundle.
type RebuildJob struct {
	ID          string
	ProjectID   string
	Category    DocumentCategory
	Status      RebuildJobStatus
	Retries     int32
	Error       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}
