// Package geometry maps an overlay rectangle drawn over a scaled video preview
// into the native pixel space of the source video.
package geometry

import (
	"errors"
	"fmt"
	"math"
)

// Bounds on a mapped overlay. The resized image is decoded in memory at
// this size, so an overlay may not exceed MaxOverlayScale times the native
// frame or MaxOverlaySide pixels on either side.
const (
	MaxOverlayScale = 4
	MaxOverlaySide  = 8192
)

// Static errors for geometry mapping.
var (
	// ErrInvalidDimensions is returned when the requested overlay size is not positive.
	ErrInvalidDimensions = errors.New("invalid dimensions: overlay width and height must be positive")
	// ErrGeometryUnavailable is returned when either frame size is unknown, so no scale can be derived.
	ErrGeometryUnavailable = errors.New("geometry unavailable: preview and native frame sizes are required")
)

// Rect is an overlay rectangle in preview coordinates (CSS pixels of the
// rendered video element). Width and Height are the overlay's requested
// logical size, not the drag handle's rendered size.
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Validate checks that the requested overlay size is positive.
func (r Rect) Validate() error {
	if !(r.Width > 0) || !(r.Height > 0) || math.IsInf(r.Width, 0) || math.IsInf(r.Height, 0) {
		return fmt.Errorf("%w: width=%v, height=%v", ErrInvalidDimensions, r.Width, r.Height)
	}
	if math.IsNaN(r.X) || math.IsNaN(r.Y) || math.IsInf(r.X, 0) || math.IsInf(r.Y, 0) {
		return fmt.Errorf("%w: x=%v, y=%v", ErrInvalidDimensions, r.X, r.Y)
	}
	return nil
}

// Size is a frame size in pixels. The zero value means "unknown".
type Size struct {
	Width  float64
	Height float64
}

// Known reports whether both dimensions are positive.
func (s Size) Known() bool {
	return s.Width > 0 && s.Height > 0 && !math.IsInf(s.Width, 0) && !math.IsInf(s.Height, 0)
}

// Geometry is an overlay placement in the video's native pixel space.
// Width and Height are always positive; X and Y may be negative or exceed
// the frame, since a partially off-frame overlay is valid.
type Geometry struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Map scales rect from the preview frame into the native frame.
//
// Both axes are scaled independently (native/preview), so the overlay covers
// the same fraction of the frame whatever the preview zoom level was.
// A missing frame size is an error; Map never assumes a 1:1 scale.
func Map(rect Rect, preview, native Size) (Geometry, error) {
	if err := rect.Validate(); err != nil {
		return Geometry{}, err
	}
	if !preview.Known() {
		return Geometry{}, fmt.Errorf("%w: preview frame %vx%v", ErrGeometryUnavailable, preview.Width, preview.Height)
	}
	if !native.Known() {
		return Geometry{}, fmt.Errorf("%w: native frame %vx%v", ErrGeometryUnavailable, native.Width, native.Height)
	}

	sx := native.Width / preview.Width
	sy := native.Height / preview.Height

	w := math.Round(rect.Width * sx)
	h := math.Round(rect.Height * sy)
	if w > maxSide(native.Width) || h > maxSide(native.Height) {
		return Geometry{}, fmt.Errorf("%w: overlay %vx%v exceeds the limit for a %vx%v frame",
			ErrInvalidDimensions, w, h, native.Width, native.Height)
	}

	g := Geometry{
		X:      int(math.Round(rect.X * sx)),
		Y:      int(math.Round(rect.Y * sy)),
		Width:  int(w),
		Height: int(h),
	}

	// A sub-pixel overlay after downscaling still has to be drawable.
	if g.Width < 1 {
		g.Width = 1
	}
	if g.Height < 1 {
		g.Height = 1
	}

	return g, nil
}

func maxSide(native float64) float64 {
	return math.Min(native*MaxOverlayScale, MaxOverlaySide)
}
