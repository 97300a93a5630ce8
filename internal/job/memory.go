package job

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository keeps jobs in a map guarded by an RWMutex. Stored and
// returned jobs are clones, so callers never share state with it.
// Job history is lost on restart; the janitor prunes finished jobs.
type MemoryRepository struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewMemoryRepository creates a new in-memory job repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		jobs: make(map[string]*Job),
	}
}

// Save stores a snapshot of job.
func (r *MemoryRepository) Save(_ context.Context, job *Job) error {
	if job == nil || job.ID == "" {
		return ErrInvalidJob
	}
	snapshot := job.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[snapshot.ID] = snapshot
	return nil
}

// FindByID retrieves a job by its ID.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.Clone(), nil
}

// List returns all jobs ordered by creation time.
func (r *MemoryRepository) List(_ context.Context) ([]*Job, error) {
	r.mu.RLock()
	result := make([]*Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		result = append(result, job.Clone())
	}
	r.mu.RUnlock()

	slices.SortFunc(result, func(a, b *Job) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return result, nil
}

// Delete removes a job from storage.
func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return ErrJobNotFound
	}
	delete(r.jobs, id)
	return nil
}

// Prune removes finished jobs whose CompletedAt is before cutoff.
func (r *MemoryRepository) Prune(ctx context.Context, cutoff time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []string
	for id, job := range r.jobs {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		// Stored jobs are private snapshots, so their fields are read without the job lock.
		if job.Status != StatusSucceeded && job.Status != StatusFailed {
			continue
		}
		if !job.CompletedAt.Before(cutoff) {
			continue
		}
		delete(r.jobs, id)
		removed = append(removed, id)
	}
	slices.Sort(removed)
	return removed, nil
}
