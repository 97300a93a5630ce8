// Package job provides the Compositor Job aggregate and the overlay
// orchestration service that drives it.
// A job moves PENDING -> RUNNING -> SUCCEEDED|FAILED. A job whose overlay
// image could not be resized fails straight from PENDING.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/maauso/videooverlay-api/internal/geometry"
	"github.com/maauso/videooverlay-api/internal/id"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusPending indicates the job is preparing its inputs (probe, resize).
	StatusPending Status = "PENDING"
	// StatusRunning indicates the compositing subprocess is running.
	StatusRunning Status = "RUNNING"
	// StatusSucceeded indicates the composited artifact was produced.
	StatusSucceeded Status = "SUCCEEDED"
	// StatusFailed indicates the job encountered an error.
	StatusFailed Status = "FAILED"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusPending:   {StatusRunning, StatusFailed},
	StatusRunning:   {StatusSucceeded, StatusFailed},
	StatusSucceeded: {},
	StatusFailed:    {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Job represents one overlay composition attempt.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// Error contains a user-safe message if the job failed.
	Error string
	// VideoPath and ImagePath are the source artifacts.
	VideoPath string
	ImagePath string
	// ResizedPath is the reserved path of the resized overlay image.
	ResizedPath string
	// OutputPath is the reserved path of the composited video.
	OutputPath string
	// Geometry is the overlay placement in native pixels.
	Geometry geometry.Geometry
	// ArtifactID is set once the job succeeded.
	ArtifactID string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	// StartedAt is when the compositing subprocess was launched.
	StartedAt time.Time
	// CompletedAt is when the job reached a terminal state.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial PENDING status.
func New() *Job {
	return NewWithID(id.Generate("job"))
}

// NewWithID creates a new Job with the specified ID and initial PENDING status.
func NewWithID(jobID string) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(status)
}

func (j *Job) transitionLocked(status Status) error {
	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch status {
	case StatusRunning:
		j.StartedAt = j.UpdatedAt
	case StatusSucceeded, StatusFailed:
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Start transitions the job from PENDING to RUNNING.
func (j *Job) Start() error {
	return j.TransitionTo(StatusRunning)
}

// Succeed transitions the job to SUCCEEDED and records the artifact.
func (j *Job) Succeed(artifactID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusSucceeded); err != nil {
		return err
	}
	j.ArtifactID = artifactID
	return nil
}

// Fail transitions the job to FAILED state with an error message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusFailed); err != nil {
		return err
	}
	j.Error = errMsg
	return nil
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusSucceeded || j.Status == StatusFailed
}

// Clone creates a copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:          j.ID,
		Status:      j.Status,
		Error:       j.Error,
		VideoPath:   j.VideoPath,
		ImagePath:   j.ImagePath,
		ResizedPath: j.ResizedPath,
		OutputPath:  j.OutputPath,
		Geometry:    j.Geometry,
		ArtifactID:  j.ArtifactID,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}
