// Package retrieval streams stored artifacts back to callers. Every key is
// canonicalized by the artifact store first, so nothing outside its root
// is ever opened.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// ErrStreamingFailed is returned when an artifact could not be read or
// written out completely.
var ErrStreamingFailed = errors.New("streaming failed")

// Locator resolves a key (identifier, public URL or path) to a real path
// inside the artifact store.
type Locator interface {
	Locate(key string) (string, error)
}

// Artifact is an opened stored file. Callers must Close it.
type Artifact struct {
	*os.File
	// Name is the file name within the store.
	Name    string
	Size    int64
	ModTime time.Time
}

// Gateway opens and streams artifacts.
type Gateway struct {
	locator Locator
	logger  *slog.Logger
}

// NewGateway creates a Gateway. A nil logger uses slog.Default().
func NewGateway(locator Locator, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{locator: locator, logger: logger}
}

// Open locates and opens the artifact named by key. Errors from the
// locator (storage.ErrNotFound, storage.ErrForbidden) are returned as is.
func (g *Gateway) Open(key string) (*Artifact, error) {
	path, err := g.locator.Locate(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path) // #nosec G304 - path was canonicalized by the store
	if err != nil {
		return nil, fmt.Errorf("%w: open: %w", ErrStreamingFailed, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: stat: %w", ErrStreamingFailed, err)
	}

	return &Artifact{
		File:    f,
		Name:    filepath.Base(path),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Copy writes the artifact to w. A short copy is ErrStreamingFailed.
func (g *Gateway) Copy(ctx context.Context, w io.Writer, a *Artifact) (int64, error) {
	n, err := io.Copy(w, &ctxReader{ctx: ctx, r: a.File})
	if err == nil && n != a.Size {
		err = fmt.Errorf("short copy: %d of %d bytes", n, a.Size)
	}
	if err != nil {
		g.logger.Warn("artifact stream interrupted",
			slog.String("name", a.Name),
			slog.Int64("written", n),
			slog.Int64("size", a.Size),
			slog.String("error", err.Error()),
		)
		return n, fmt.Errorf("%w: %w", ErrStreamingFailed, err)
	}
	return n, nil
}

// Stream opens the artifact named by key and writes it to w.
func (g *Gateway) Stream(ctx context.Context, w io.Writer, key string) (int64, error) {
	a, err := g.Open(key)
	if err != nil {
		return 0, err
	}
	defer func() { _ = a.Close() }()

	return g.Copy(ctx, w, a)
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
