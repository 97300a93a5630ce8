// Package janitor expires stored artifacts. Files older than the TTL are
// removed from the store, and registry records whose output was removed
// are dropped with them.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/maauso/videooverlay-api/internal/artifact"
)

// ErrInvalidTTL is returned when the TTL is not positive.
var ErrInvalidTTL = errors.New("artifact TTL must be positive")

// Sweeper removes files modified before cutoff and reports their paths.
type Sweeper interface {
	Sweep(ctx context.Context, cutoff time.Time) ([]string, error)
}

// JobPruner drops finished job records completed before cutoff.
type JobPruner interface {
	Prune(ctx context.Context, cutoff time.Time) ([]string, error)
}

// Result summarizes one sweep.
type Result struct {
	Files   []string
	Records []string
	Jobs    []string
}

// Option configures a Janitor.
type Option func(*Janitor)

// WithJobs also prunes finished jobs older than the TTL.
func WithJobs(jobs JobPruner) Option {
	return func(j *Janitor) {
		j.jobs = jobs
	}
}

// Janitor periodically sweeps expired artifacts.
type Janitor struct {
	store    Sweeper
	registry artifact.Registry
	jobs     JobPruner
	ttl      time.Duration
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Janitor. interval may be zero when only SweepOnce is used.
func New(store Sweeper, registry artifact.Registry, ttl, interval time.Duration, logger *slog.Logger, opts ...Option) (*Janitor, error) {
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	j := &Janitor{
		store:    store,
		registry: registry,
		ttl:      ttl,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// SweepOnce removes every artifact older than the TTL.
func (j *Janitor) SweepOnce(ctx context.Context) (*Result, error) {
	cutoff := j.now().Add(-j.ttl)

	removed, sweepErr := j.store.Sweep(ctx, cutoff)
	res := &Result{Files: removed}

	if len(removed) > 0 && j.registry != nil {
		gone := make(map[string]bool, len(removed))
		for _, p := range removed {
			gone[filepath.Base(p)] = true
		}

		records, err := j.registry.List(ctx)
		if err != nil {
			return res, errors.Join(sweepErr, fmt.Errorf("list artifacts: %w", err))
		}
		for _, rec := range records {
			if !gone[filepath.Base(rec.Path)] {
				continue
			}
			if err := j.registry.Delete(ctx, rec.ID); err != nil && !errors.Is(err, artifact.ErrArtifactNotFound) {
				j.logger.Warn("failed to drop expired artifact record",
					slog.String("artifact_id", rec.ID),
					slog.String("error", err.Error()),
				)
				continue
			}
			res.Records = append(res.Records, rec.ID)
		}
	}

	if j.jobs != nil {
		pruned, err := j.jobs.Prune(ctx, cutoff)
		res.Jobs = pruned
		if err != nil {
			sweepErr = errors.Join(sweepErr, fmt.Errorf("prune jobs: %w", err))
		}
	}

	if len(res.Files) > 0 || len(res.Jobs) > 0 || sweepErr != nil {
		j.logger.Info("swept expired artifacts",
			slog.Int("files", len(res.Files)),
			slog.Int("records", len(res.Records)),
			slog.Int("jobs", len(res.Jobs)),
			slog.Time("cutoff", cutoff),
		)
	}
	return res, sweepErr
}

// Run sweeps every interval until ctx is done. It returns immediately when
// the interval is not positive.
func (j *Janitor) Run(ctx context.Context) {
	if j.interval <= 0 {
		j.logger.Info("artifact janitor disabled")
		return
	}

	j.logger.Info("artifact janitor started",
		slog.Duration("ttl", j.ttl),
		slog.Duration("interval", j.interval),
	)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("artifact janitor stopped")
			return
		case <-ticker.C:
			if _, err := j.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				j.logger.Error("artifact sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}
