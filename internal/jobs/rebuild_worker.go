package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/propelgov/propelai/internal/domain"
)

const (
	// MaxRetries is the maximum number of retries for a failed job
	MaxRetries = 3
)

// RebuildJobRepository defines the interface for rebuild job persistence
type RebuildJobRepository interface {
	// ClaimPending retrieves and claims pending rebuild jobs
	ClaimPending(ctx context.Context, limit int) ([]*domain.RebuildJob, error)

	// UpdateStatus updates the status of a rebuild job
	UpdateStatus(ctx context.Context, jobID string, status domain.RebuildJobStatus, errMsg string) error

	// IncrementRetries increments the retry count for a job
	IncrementRetries(ctx context.Context, jobID string) error
}

// ContextBuilder kicks off a context rebuild for one cache key.
type ContextBuilder interface {
	TriggerBuild(projectID string, category domain.DocumentCategory)
}

// RebuildWorker drains durable rebuild jobs into the in-process build
// scheduler. The jobs exist so document mutations committed right before a
// crash still get their rebuild after restart; duplicate triggers are cheap
// because the builder coalesces them per key.
type RebuildWorker struct {
	repo    RebuildJobRepository
	builder ContextBuilder
}

// NewRebuildWorker creates a new RebuildWorker instance
func NewRebuildWorker(repo RebuildJobRepository, builder ContextBuilder) *RebuildWorker {
	return &RebuildWorker{
		repo:    repo,
		builder: builder,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *RebuildWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.ClaimPending(ctx, 100)
	if err != nil {
		return fmt.Errorf("failed to claim pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	log.Printf("Processing %d pending rebuild jobs", len(jobs))

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			log.Printf("Error processing job %s: %v", job.ID, err)
		}
	}

	return nil
}

func (w *RebuildWorker) processJob(ctx context.Context, job *domain.RebuildJob) error {
	if job.ProjectID == "" || !domain.IsValidDocumentCategory(job.Category) {
		errMsg := fmt.Sprintf("job %s has an invalid cache key (%q, %q)", job.ID, job.ProjectID, job.Category)
		if err := w.repo.UpdateStatus(ctx, job.ID, domain.RebuildJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	log.Printf("Processing job %s for key (%s, %s)", job.ID, job.ProjectID, job.Category)
	w.builder.TriggerBuild(job.ProjectID, job.Category)

	if err := w.repo.UpdateStatus(ctx, job.ID, domain.RebuildJobStatusCompleted, ""); err != nil {
		return w.handleJobFailure(ctx, job, err)
	}

	return nil
}

// handleJobFailure handles a failed job with retry logic
func (w *RebuildWorker) handleJobFailure(ctx context.Context, job *domain.RebuildJob, jobErr error) error {
	log.Printf("Job %s failed: %v", job.ID, jobErr)

	if err := w.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if job.Retries+1 >= MaxRetries {
		log.Printf("Job %s exceeded max retries (%d), marking as failed", job.ID, MaxRetries)
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.repo.UpdateStatus(ctx, job.ID, domain.RebuildJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	log.Printf("Job %s will be retried (attempt %d/%d)", job.ID, job.Retries+1, MaxRetries)
	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.repo.UpdateStatus(ctx, job.ID, domain.RebuildJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}

	return nil
}
