// Package storage provides the artifact store: uploaded inputs, derived
// intermediates and composited outputs living as files under one root
// directory, plus an optional S3 mirror for finished outputs.
//
// Files are the source of truth. Nothing is cached in memory, so external
// processes (ffmpeg) can read and write artifacts by path.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// Static errors for storage operations.
var (
	// ErrStorageWriteFailed is returned when an artifact could not be fully written.
	ErrStorageWriteFailed = errors.New("storage write failed")
	// ErrNotFound is returned when an identifier or path does not name a stored artifact.
	ErrNotFound = errors.New("artifact not found")
	// ErrForbidden is returned when a path resolves outside the storage root.
	ErrForbidden = errors.New("path outside storage root")
	// ErrS3NotConfigured is returned when S3 operations are attempted
	// without proper configuration.
	ErrS3NotConfigured = errors.New("S3 storage is not configured")
)

// Kind classifies an artifact. It is also the file name prefix.
type Kind string

const (
	// KindImage is an uploaded overlay image.
	KindImage Kind = "image"
	// KindVideo is an uploaded source video.
	KindVideo Kind = "video"
	// KindResized is an overlay image resized to its native-space geometry.
	KindResized Kind = "resized"
	// KindOutput is a composited video.
	KindOutput Kind = "output"
)

// UploadedAsset describes a stored upload. It is immutable once created.
type UploadedAsset struct {
	// ID is the opaque identifier (also the file name within the root).
	ID string `json:"id"`
	// Kind is image or video.
	Kind Kind `json:"kind"`
	// Path is the absolute storage path.
	Path string `json:"-"`
	// OriginalName is the client-supplied file name.
	OriginalName string `json:"originalName"`
	// Size is the number of bytes written.
	Size int64 `json:"size"`
	// URL is the public retrieval path, e.g. "uploads/<id>".
	URL string `json:"url"`
}

// Storage defines the artifact store.
type Storage interface {
	// Put writes data as a new artifact of the given kind. The returned asset
	// is only handed out once every byte reached disk.
	Put(ctx context.Context, kind Kind, originalName string, data io.Reader) (*UploadedAsset, error)

	// Resolve returns the storage path for an identifier, or ErrNotFound.
	Resolve(ctx context.Context, id string) (string, error)

	// Reserve claims a fresh, unique path for a derived artifact.
	// The file exists (empty) when Reserve returns, so no concurrent
	// caller can be handed the same name.
	Reserve(kind Kind, ext string) (id, path string, err error)

	// Locate canonicalizes an identifier, public URL or path and returns the
	// artifact's real path. It returns ErrForbidden for anything resolving
	// outside the root and ErrNotFound for missing artifacts.
	Locate(key string) (string, error)

	// URLFor returns the public retrieval path for an identifier.
	URLFor(id string) string

	// Cleanup removes the specified artifacts.
	// It continues cleanup even if some files fail to delete.
	Cleanup(ctx context.Context, paths []string) error

	// Sweep removes artifacts last modified before cutoff and returns their paths.
	Sweep(ctx context.Context, cutoff time.Time) ([]string, error)

	// Publish mirrors data to S3 and returns the public URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	Publish(ctx context.Context, key string, data io.Reader) (url string, err error)
}
