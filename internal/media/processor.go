// Package media provides image and video processing capabilities.
package media

import "context"

// VideoInfo describes the primary video stream of a media file.
type VideoInfo struct {
	// Width and Height are the native frame size, already corrected for
	// display rotation.
	Width  int `json:"width"`
	Height int `json:"height"`
	// HasAudio reports whether the file carries at least one audio stream.
	HasAudio bool    `json:"hasAudio"`
	Duration float64 `json:"duration"`
	Codec    string  `json:"codec"`
}

// CompositeInput are the parameters of one overlay composition.
type CompositeInput struct {
	VideoPath  string
	ImagePath  string
	OutputPath string
	// X and Y position the image's top-left corner on every frame.
	// They may be negative or beyond the frame.
	X, Y int
	// HasAudio stream-copies the source audio into the output.
	HasAudio bool
}

// Processor defines the interface for image and video processing operations.
// Implementations should use ffmpeg or similar tools for media manipulation.
type Processor interface {
	// ProbeVideo returns the native frame size of the video at path.
	ProbeVideo(ctx context.Context, path string) (*VideoInfo, error)

	// ResizeImage scales and center-crops the image at src to exactly w x h
	// and writes it to dst. src is never modified.
	ResizeImage(ctx context.Context, src, dst string, w, h int) error

	// StartComposite launches the compositing subprocess and returns
	// immediately. The returned Pending resolves when the subprocess exits.
	StartComposite(ctx context.Context, in CompositeInput) (*Pending, error)
}
