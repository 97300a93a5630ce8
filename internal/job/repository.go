package job

import (
	"context"
	"errors"
	"time"
)

// Static errors for job persistence.
var (
	// ErrJobNotFound is returned when a job cannot be found by ID.
	ErrJobNotFound = errors.New("job not found")
	// ErrInvalidJob is returned when saving a nil job or one without an ID.
	ErrInvalidJob = errors.New("job has no ID")
)

// Repository stores Compositor Jobs so their state can be queried after
// the request that created them has returned.
type Repository interface {
	// Save inserts or replaces the job.
	Save(ctx context.Context, job *Job) error

	// FindByID returns ErrJobNotFound if the job does not exist.
	FindByID(ctx context.Context, id string) (*Job, error)

	// List returns all jobs, oldest first.
	List(ctx context.Context) ([]*Job, error)

	// Delete returns ErrJobNotFound if the job does not exist.
	Delete(ctx context.Context, id string) error

	// Prune removes terminal jobs completed before cutoff and returns their IDs.
	// Pending and running jobs are never removed.
	Prune(ctx context.Context, cutoff time.Time) ([]string, error)
}
