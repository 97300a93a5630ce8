package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/maauso/videooverlay-api/internal/artifact"
	"github.com/maauso/videooverlay-api/internal/geometry"
	"github.com/maauso/videooverlay-api/internal/media"
	"github.com/maauso/videooverlay-api/internal/storage"
)

// ErrEmptyOutput is returned when the compositor exits cleanly but leaves no output.
var ErrEmptyOutput = errors.New("compositor produced an empty output")

// File is one uploaded file.
type File struct {
	Name string
	Data io.Reader
}

// UploadResult holds the stored inputs of a composition.
type UploadResult struct {
	Image *storage.UploadedAsset
	Video *storage.UploadedAsset
}

// OverlayInput describes one composition request. ImageRef and VideoRef
// accept an identifier, a public URL or a storage path of an upload.
// Rect and Preview are in preview (rendered) coordinates.
type OverlayInput struct {
	ImageRef string
	VideoRef string
	Rect     geometry.Rect
	Preview  geometry.Size
}

// OverlayResult is the outcome of a successful composition.
type OverlayResult struct {
	Job      *Job
	Artifact *artifact.CompositedArtifact
}

// OverlayService orchestrates uploads and overlay compositions.
type OverlayService struct {
	store    storage.Storage
	media    media.Processor
	repo     Repository
	registry artifact.Registry
	logger   *slog.Logger
	mirror   bool
}

// ServiceOption configures an OverlayService.
type ServiceOption func(*OverlayService)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *OverlayService) {
		s.logger = logger
	}
}

// WithS3Mirror publishes every composited output through storage.Publish.
func WithS3Mirror(enabled bool) ServiceOption {
	return func(s *OverlayService) {
		s.mirror = enabled
	}
}

// NewOverlayService creates a new OverlayService.
func NewOverlayService(store storage.Storage, proc media.Processor, repo Repository, registry artifact.Registry, opts ...ServiceOption) *OverlayService {
	s := &OverlayService{
		store:    store,
		media:    proc,
		repo:     repo,
		registry: registry,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Upload stores an image and a video. Either both are stored or neither is.
func (s *OverlayService) Upload(ctx context.Context, image, video File) (*UploadResult, error) {
	return s.UploadSources(ctx, &image, &video)
}

// UploadSources stores whichever of image and video is non-nil. Either all
// given files are stored or none is; a nil side is left nil in the result.
func (s *OverlayService) UploadSources(ctx context.Context, image, video *File) (*UploadResult, error) {
	res := &UploadResult{}

	if image != nil {
		img, err := s.store.Put(ctx, storage.KindImage, image.Name, image.Data)
		if err != nil {
			return nil, fmt.Errorf("store image: %w", err)
		}
		res.Image = img
	}

	if video != nil {
		vid, err := s.store.Put(ctx, storage.KindVideo, video.Name, video.Data)
		if err != nil {
			if res.Image != nil {
				if cerr := s.store.Cleanup(context.WithoutCancel(ctx), []string{res.Image.Path}); cerr != nil {
					s.logger.Warn("failed to remove image after video upload failure",
						slog.String("image_id", res.Image.ID),
						slog.String("error", cerr.Error()),
					)
				}
			}
			return nil, fmt.Errorf("store video: %w", err)
		}
		res.Video = vid
	}

	attrs := make([]any, 0, 4)
	if res.Image != nil {
		attrs = append(attrs, slog.String("image_id", res.Image.ID), slog.Int64("image_bytes", res.Image.Size))
	}
	if res.Video != nil {
		attrs = append(attrs, slog.String("video_id", res.Video.ID), slog.Int64("video_bytes", res.Video.Size))
	}
	s.logger.Info("upload stored", attrs...)

	return res, nil
}

// Overlay composites the referenced image onto the referenced video.
//
// Requests that fail validation, lookup or geometry return before any job
// is created. Once a job exists, its intermediates are removed on failure
// and no artifact is recorded. The compositor runs to completion even if
// ctx is cancelled.
func (s *OverlayService) Overlay(ctx context.Context, in OverlayInput) (*OverlayResult, error) {
	if err := in.Rect.Validate(); err != nil {
		return nil, err
	}

	imagePath, err := s.store.Locate(in.ImageRef)
	if err != nil {
		return nil, fmt.Errorf("image %q: %w", in.ImageRef, err)
	}
	videoPath, err := s.store.Locate(in.VideoRef)
	if err != nil {
		return nil, fmt.Errorf("video %q: %w", in.VideoRef, err)
	}

	if !in.Preview.Known() {
		return nil, fmt.Errorf("%w: preview frame size not supplied", geometry.ErrGeometryUnavailable)
	}

	info, err := s.media.ProbeVideo(ctx, videoPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", geometry.ErrGeometryUnavailable, err)
	}

	geo, err := geometry.Map(in.Rect, in.Preview, geometry.Size{
		Width:  float64(info.Width),
		Height: float64(info.Height),
	})
	if err != nil {
		return nil, err
	}

	job := New()
	job.VideoPath = videoPath
	job.ImagePath = imagePath
	job.Geometry = geo
	if err := s.repo.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}

	log := s.logger.With(slog.String("job_id", job.ID))
	log.Info("composition requested",
		slog.Int("native_width", info.Width),
		slog.Int("native_height", info.Height),
		slog.Int("x", geo.X),
		slog.Int("y", geo.Y),
		slog.Int("width", geo.Width),
		slog.Int("height", geo.Height),
	)

	// Past this point the job's bookkeeping must finish regardless of the caller.
	ctx = context.WithoutCancel(ctx)

	_, resizedPath, err := s.store.Reserve(storage.KindResized, ".png")
	if err != nil {
		return nil, s.fail(ctx, log, job, err)
	}
	job.ResizedPath = resizedPath

	if err := s.media.ResizeImage(ctx, imagePath, resizedPath, geo.Width, geo.Height); err != nil {
		return nil, s.fail(ctx, log, job, err, resizedPath)
	}

	outputID, outputPath, err := s.store.Reserve(storage.KindOutput, ".mp4")
	if err != nil {
		return nil, s.fail(ctx, log, job, err, resizedPath)
	}
	job.OutputPath = outputPath

	if err := job.Start(); err != nil {
		return nil, s.fail(ctx, log, job, err, resizedPath, outputPath)
	}
	s.save(ctx, log, job)

	pending, err := s.media.StartComposite(ctx, media.CompositeInput{
		VideoPath:  videoPath,
		ImagePath:  resizedPath,
		OutputPath: outputPath,
		X:          geo.X,
		Y:          geo.Y,
		HasAudio:   info.HasAudio,
	})
	if err != nil {
		return nil, s.fail(ctx, log, job, err, resizedPath, outputPath)
	}

	if _, err := pending.Wait(ctx); err != nil {
		return nil, s.fail(ctx, log, job, err, resizedPath, outputPath)
	}

	if fi, err := os.Stat(outputPath); err != nil || fi.Size() == 0 {
		return nil, s.fail(ctx, log, job, fmt.Errorf("%w: %w", media.ErrCompositionFailed, ErrEmptyOutput), resizedPath, outputPath)
	}

	record := &artifact.CompositedArtifact{
		ID:          outputID,
		Path:        outputPath,
		URL:         s.store.URLFor(outputID),
		JobID:       job.ID,
		VideoID:     filepath.Base(videoPath),
		ImageID:     filepath.Base(imagePath),
		ResizedPath: resizedPath,
		Geometry:    geo,
		CreatedAt:   time.Now(),
	}

	if s.mirror {
		record.S3URL = s.publish(ctx, log, outputID, outputPath)
	}

	if err := s.registry.Save(ctx, record); err != nil {
		return nil, s.fail(ctx, log, job, fmt.Errorf("record artifact: %w", err), resizedPath, outputPath)
	}

	if err := job.Succeed(outputID); err != nil {
		log.Error("failed to mark job succeeded", slog.String("error", err.Error()))
	}
	s.save(ctx, log, job)

	log.Info("composition succeeded",
		slog.String("artifact_id", outputID),
		slog.Duration("duration", time.Since(job.StartedAt)),
	)

	return &OverlayResult{Job: job.Clone(), Artifact: record}, nil
}

// GetJob retrieves a job by ID.
func (s *OverlayService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// GetArtifact retrieves a composited artifact record by ID.
func (s *OverlayService) GetArtifact(ctx context.Context, id string) (*artifact.CompositedArtifact, error) {
	return s.registry.FindByID(ctx, id)
}

// fail removes the job's intermediates, marks it FAILED and returns cause.
func (s *OverlayService) fail(ctx context.Context, log *slog.Logger, job *Job, cause error, paths ...string) error {
	var ffErr *media.FFmpegError
	if errors.As(cause, &ffErr) {
		log.Error("compositor failed",
			slog.Any("error", ffErr.Err),
			slog.String("stderr", ffErr.Stderr),
		)
	} else {
		log.Error("composition failed", slog.String("error", cause.Error()))
	}

	if err := s.store.Cleanup(ctx, paths); err != nil {
		log.Warn("failed to remove intermediates", slog.String("error", err.Error()))
	}

	if err := job.Fail(failureMessage(cause)); err != nil {
		log.Error("failed to mark job failed", slog.String("error", err.Error()))
	}
	s.save(ctx, log, job)

	return cause
}

func (s *OverlayService) save(ctx context.Context, log *slog.Logger, job *Job) {
	if err := s.repo.Save(ctx, job); err != nil {
		log.Error("failed to save job", slog.String("error", err.Error()))
	}
}

// publish mirrors the output to S3. Failures are logged and yield "".
func (s *OverlayService) publish(ctx context.Context, log *slog.Logger, key, path string) string {
	f, err := os.Open(path) // #nosec G304 - path was reserved by the artifact store
	if err != nil {
		log.Warn("failed to open output for S3 mirror", slog.String("error", err.Error()))
		return ""
	}
	defer func() { _ = f.Close() }()

	url, err := s.store.Publish(ctx, key, f)
	if err != nil {
		log.Warn("S3 mirror failed", slog.String("error", err.Error()))
		return ""
	}
	return url
}

// failureMessage is the job error shown to clients. It never carries paths or stderr.
func failureMessage(err error) string {
	switch {
	case errors.Is(err, media.ErrResizeFailed):
		return "resize failed"
	case errors.Is(err, media.ErrCompositionFailed):
		return "composition failed"
	case errors.Is(err, storage.ErrStorageWriteFailed):
		return "storage write failed"
	default:
		return "internal error"
	}
}
