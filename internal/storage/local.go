package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/maauso/videooverlay-api/internal/id"
)

// Compile-time check that LocalStorage implements Storage.
var _ Storage = (*LocalStorage)(nil)

// DefaultPublicPrefix is the URL prefix artifacts are served under.
const DefaultPublicPrefix = "uploads"

var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)

// LocalStorage implements the Storage interface using local disk.
// It stores every artifact flat in a configurable root directory and does
// not support S3 operations unless wrapped with S3Storage.
type LocalStorage struct {
	root     string
	realRoot string
	prefix   string
}

// NewLocalStorage creates a new LocalStorage instance.
// If root is empty, a directory under os.TempDir() is used.
// If publicPrefix is empty, DefaultPublicPrefix is used.
// The directory is created if it doesn't exist.
func NewLocalStorage(root, publicPrefix string) (*LocalStorage, error) {
	if root == "" {
		root = filepath.Join(os.TempDir(), "videooverlay")
	}
	if publicPrefix == "" {
		publicPrefix = DefaultPublicPrefix
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0750); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}

	return &LocalStorage{
		root:     abs,
		realRoot: resolved,
		prefix:   strings.Trim(publicPrefix, "/"),
	}, nil
}

// Root returns the storage root directory.
func (s *LocalStorage) Root() string {
	return s.root
}

// Put saves data under a freshly generated identifier.
func (s *LocalStorage) Put(ctx context.Context, kind Kind, originalName string, data io.Reader) (*UploadedAsset, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	assetID, path, f, err := s.create(kind, normalizeExt(filepath.Ext(originalName)))
	if err != nil {
		return nil, err
	}

	n, err := io.Copy(f, data)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("%w: write %s: %w", ErrStorageWriteFailed, assetID, err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("%w: close %s: %w", ErrStorageWriteFailed, assetID, err)
	}

	return &UploadedAsset{
		ID:           assetID,
		Kind:         kind,
		Path:         path,
		OriginalName: filepath.Base(originalName),
		Size:         n,
		URL:          s.URLFor(assetID),
	}, nil
}

// Resolve returns the path of the artifact with the given identifier.
func (s *LocalStorage) Resolve(ctx context.Context, assetID string) (string, error) {
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	if assetID == "" || assetID == "." || assetID == ".." || strings.ContainsAny(assetID, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrNotFound, assetID)
	}

	path := filepath.Join(s.root, assetID)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %q", ErrNotFound, assetID)
	}
	return path, nil
}

// Reserve claims a unique path for a derived artifact.
func (s *LocalStorage) Reserve(kind Kind, ext string) (string, string, error) {
	assetID, path, f, err := s.create(kind, normalizeExt(ext))
	if err != nil {
		return "", "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", "", fmt.Errorf("%w: close %s: %w", ErrStorageWriteFailed, assetID, err)
	}
	return assetID, path, nil
}

// create opens a new file exclusively. A name collision, however unlikely,
// is retried with a new identifier rather than overwriting anything.
func (s *LocalStorage) create(kind Kind, ext string) (string, string, *os.File, error) {
	const attempts = 3

	var lastErr error
	for i := 0; i < attempts; i++ {
		assetID := id.Generate(string(kind)) + ext
		path := filepath.Join(s.root, assetID)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0640) // #nosec G304 - name is generated
		if err == nil {
			return assetID, path, f, nil
		}
		lastErr = err
		if !errors.Is(err, os.ErrExist) {
			break
		}
	}
	return "", "", nil, fmt.Errorf("%w: create %s artifact: %w", ErrStorageWriteFailed, kind, lastErr)
}

// Locate canonicalizes key and checks that it stays within the root.
// Accepted forms: "<id>", "<prefix>/<id>", "/<prefix>/<id>" and absolute paths.
func (s *LocalStorage) Locate(key string) (string, error) {
	if strings.TrimSpace(key) == "" || strings.ContainsRune(key, 0) {
		return "", fmt.Errorf("%w: empty key", ErrNotFound)
	}

	var candidate string
	native := filepath.FromSlash(key)
	if filepath.IsAbs(native) && !strings.HasPrefix(key, "/"+s.prefix+"/") {
		candidate = filepath.Clean(native)
	} else {
		rel := strings.TrimLeft(key, "/")
		rel = strings.TrimPrefix(rel, s.prefix+"/")
		candidate = filepath.Join(s.root, filepath.FromSlash(rel))
	}

	if !within(s.root, candidate) && !within(s.realRoot, candidate) {
		return "", fmt.Errorf("%w: %q", ErrForbidden, key)
	}

	resolved, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %q", ErrNotFound, key)
		}
		return "", fmt.Errorf("%w: %q: %w", ErrNotFound, key, err)
	}
	// A symlink planted inside the root must not lead back out of it.
	if !within(s.realRoot, resolved) {
		return "", fmt.Errorf("%w: %q", ErrForbidden, key)
	}

	info, err := os.Stat(resolved)
	if err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %q", ErrNotFound, key)
	}
	return resolved, nil
}

// URLFor returns "<prefix>/<id>".
func (s *LocalStorage) URLFor(assetID string) string {
	return s.prefix + "/" + assetID
}

// Cleanup removes the specified artifacts.
// It continues cleanup even if some files fail to delete,
// returning the first error encountered. Paths outside the root are refused.
func (s *LocalStorage) Cleanup(ctx context.Context, paths []string) error {
	var firstErr error
	for _, p := range paths {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if p == "" {
			continue
		}
		if clean := filepath.Clean(p); !within(s.root, clean) && !within(s.realRoot, clean) {
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: %s", ErrForbidden, p)
			}
			continue
		}

		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove artifact %s: %w", p, err)
			}
		}
	}
	return firstErr
}

// Sweep removes regular files in the root last modified before cutoff.
func (s *LocalStorage) Sweep(ctx context.Context, cutoff time.Time) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read storage directory: %w", err)
	}

	var removed []string
	var firstErr error
	for _, e := range entries {
		select {
		case <-ctx.Done():
			return removed, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(s.root, e.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove artifact %s: %w", path, err)
			}
			continue
		}
		removed = append(removed, path)
	}
	return removed, firstErr
}

// Publish is not supported by LocalStorage and returns ErrS3NotConfigured.
func (s *LocalStorage) Publish(_ context.Context, _ string, _ io.Reader) (string, error) {
	return "", ErrS3NotConfigured
}

// within reports whether path lies strictly below root.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// normalizeExt lowercases ext and drops anything that is not a short
// alphanumeric extension.
func normalizeExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if !extPattern.MatchString(ext) {
		return ""
	}
	return ext
}
