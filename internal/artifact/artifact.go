// Package artifact records composited outputs. A record exists only for a
// composition that completed successfully and is never modified afterwards;
// a retry produces a new record under a new identifier.
package artifact

import (
	"context"
	"errors"
	"time"

	"github.com/maauso/videooverlay-api/internal/geometry"
)

// Static errors for the artifact registry.
var (
	// ErrArtifactNotFound is returned when no record exists for an identifier.
	ErrArtifactNotFound = errors.New("artifact not found")
	// ErrArtifactExists is returned when saving over an existing record.
	ErrArtifactExists = errors.New("artifact already recorded")
)

// CompositedArtifact is the record of one successful composition.
type CompositedArtifact struct {
	ID       string `json:"id"`
	Path     string `json:"path"`
	URL      string `json:"url"`
	S3URL    string `json:"s3Url,omitempty"`
	JobID    string `json:"jobId"`
	VideoID  string `json:"videoId,omitempty"`
	ImageID  string `json:"imageId,omitempty"`
	// ResizedPath is the intermediate overlay image used for this output.
	ResizedPath string            `json:"resizedPath,omitempty"`
	Geometry    geometry.Geometry `json:"geometry"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// Registry stores CompositedArtifact records.
type Registry interface {
	// Save records a new artifact. It returns ErrArtifactExists if the
	// identifier is already recorded.
	Save(ctx context.Context, a *CompositedArtifact) error

	// FindByID returns the record for id or ErrArtifactNotFound.
	FindByID(ctx context.Context, id string) (*CompositedArtifact, error)

	// List returns every record.
	List(ctx context.Context) ([]*CompositedArtifact, error)

	// Delete removes a record. It returns ErrArtifactNotFound if absent.
	Delete(ctx context.Context, id string) error
}
