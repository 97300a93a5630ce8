// Package server provides the HTTP server for the video overlay API.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/maauso/videooverlay-api/internal/geometry"
)

// OverlayRequest is the parsed /overlay form. Coordinates are in the
// preview (rendered) frame. Bounds are checked here; positivity of the
// overlay size and its mapped size limit are left to the coordinate mapper.
// A missing preview size stays zero and is reported as unavailable geometry.
type OverlayRequest struct {
	X             float64 `validate:"gte=-100000,lte=100000"`
	Y             float64 `validate:"gte=-100000,lte=100000"`
	Width         float64 `validate:"lte=100000"`
	Height        float64 `validate:"lte=100000"`
	PreviewWidth  float64 `validate:"omitempty,gte=1,lte=100000"`
	PreviewHeight float64 `validate:"omitempty,gte=1,lte=100000"`
	ImageRef      string  `validate:"omitempty,max=512"`
	VideoRef      string  `validate:"omitempty,max=512"`
}

// UploadResponse is the HTTP response after storing an image and a video.
type UploadResponse struct {
	ImageURL string `json:"imageUrl"`
	VideoURL string `json:"videoUrl"`
	ImageID  string `json:"imageId"`
	VideoID  string `json:"videoId"`
}

// OverlayResponse is the HTTP response for a successful composition.
type OverlayResponse struct {
	// ID is the composited artifact identifier.
	ID string `json:"id"`
	// JobID is the Compositor Job that produced it.
	JobID string `json:"jobId"`
	// OverlayedVideoURL is the public path of the output.
	OverlayedVideoURL string `json:"overlayedVideoUrl"`
	// DownloadURL serves the output as an attachment.
	DownloadURL string            `json:"downloadUrl"`
	Geometry    geometry.Geometry `json:"geometry"`
	S3URL       string            `json:"s3Url,omitempty"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	// Error contains any error message if the job failed.
	Error       string            `json:"error,omitempty"`
	Geometry    geometry.Geometry `json:"geometry"`
	ArtifactID  string            `json:"artifactId,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	StartedAt   *time.Time        `json:"startedAt,omitempty"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
}

// ArtifactResponse is the HTTP response for a composited artifact record.
type ArtifactResponse struct {
	ID                string            `json:"id"`
	JobID             string            `json:"jobId"`
	OverlayedVideoURL string            `json:"overlayedVideoUrl"`
	S3URL             string            `json:"s3Url,omitempty"`
	VideoID           string            `json:"videoId,omitempty"`
	ImageID           string            `json:"imageId,omitempty"`
	Geometry          geometry.Geometry `json:"geometry"`
	CreatedAt         time.Time         `json:"createdAt"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
