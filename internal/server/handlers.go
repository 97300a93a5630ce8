package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/videooverlay-api/internal/artifact"
	"github.com/maauso/videooverlay-api/internal/geometry"
	"github.com/maauso/videooverlay-api/internal/job"
	"github.com/maauso/videooverlay-api/internal/media"
	"github.com/maauso/videooverlay-api/internal/retrieval"
	"github.com/maauso/videooverlay-api/internal/storage"
)

// DefaultMaxUploadBytes bounds a multipart request body.
const DefaultMaxUploadBytes int64 = 512 << 20

// multipartMemory is the part of a multipart body kept in memory; the
// rest spills to temporary files.
const multipartMemory = 32 << 20

var errMissingNumber = errors.New("missing value")

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service        *job.OverlayService
	gateway        *retrieval.Gateway
	validator      *validator.Validate
	logger         *slog.Logger
	maxUploadBytes int64
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithMaxUploadBytes limits the size of /upload and /overlay bodies.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.OverlayService, gateway *retrieval.Gateway, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handlers{
		service:        service,
		gateway:        gateway,
		validator:      validator.New(),
		logger:         logger,
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Upload handles POST /upload requests: a multipart form with "image" and
// "video" files.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	if !h.parseMultipart(w, r) {
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	image, imageHeader, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required", "MISSING_FILE")
		return
	}
	defer func() { _ = image.Close() }()

	video, videoHeader, err := r.FormFile("video")
	if err != nil {
		writeError(w, http.StatusBadRequest, "video file is required", "MISSING_FILE")
		return
	}
	defer func() { _ = video.Close() }()

	res, err := h.service.Upload(r.Context(),
		job.File{Name: imageHeader.Filename, Data: image},
		job.File{Name: videoHeader.Filename, Data: video},
	)
	if err != nil {
		h.writeServiceError(w, r, "upload failed", err)
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{
		ImageURL: res.Image.URL,
		VideoURL: res.Video.URL,
		ImageID:  res.Image.ID,
		VideoID:  res.Video.ID,
	})
}

// Overlay handles POST /overlay requests.
//
// The form carries x, y, width, height, previewWidth and previewHeight in
// preview coordinates. Sources are either re-submitted as "image"/"video"
// files or referenced with imageId/videoId (imageUrl/videoUrl) from /upload.
// The request blocks until the composition finishes.
func (h *Handlers) Overlay(w http.ResponseWriter, r *http.Request) {
	if !h.parseMultipart(w, r) {
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	req, err := parseOverlayForm(r)
	if err != nil {
		h.logger.Warn("invalid overlay form", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_FORM")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	rect := geometry.Rect{X: req.X, Y: req.Y, Width: req.Width, Height: req.Height}
	preview := geometry.Size{Width: req.PreviewWidth, Height: req.PreviewHeight}

	// Reject what the mapper would reject before storing anything re-submitted.
	if err := rect.Validate(); err != nil {
		h.writeServiceError(w, r, "invalid overlay", err)
		return
	}
	if !preview.Known() {
		h.writeServiceError(w, r, "invalid overlay",
			fmt.Errorf("%w: preview frame size not supplied", geometry.ErrGeometryUnavailable))
		return
	}

	if req.ImageRef == "" || req.VideoRef == "" {
		up, ok := h.uploadFromForm(w, r, req.ImageRef == "", req.VideoRef == "")
		if !ok {
			return
		}
		if up.Image != nil {
			req.ImageRef = up.Image.ID
		}
		if up.Video != nil {
			req.VideoRef = up.Video.ID
		}
	}

	res, err := h.service.Overlay(r.Context(), job.OverlayInput{
		ImageRef: req.ImageRef,
		VideoRef: req.VideoRef,
		Rect:     rect,
		Preview:  preview,
	})
	if err != nil {
		h.writeServiceError(w, r, "overlay failed", err)
		return
	}

	writeJSON(w, http.StatusOK, OverlayResponse{
		ID:                res.Artifact.ID,
		JobID:             res.Job.ID,
		OverlayedVideoURL: res.Artifact.URL,
		DownloadURL:       "/download?videoUrl=" + url.QueryEscape(res.Artifact.URL),
		Geometry:          res.Artifact.Geometry,
		S3URL:             res.Artifact.S3URL,
	})
}

// uploadFromForm stores the re-submitted files for the sides not given by
// reference. Every needed file must be present before anything is stored.
func (h *Handlers) uploadFromForm(w http.ResponseWriter, r *http.Request, needImage, needVideo bool) (*job.UploadResult, bool) {
	var image, video *job.File

	if needImage {
		f, header, err := r.FormFile("image")
		if err != nil {
			writeError(w, http.StatusBadRequest, "image file or imageId is required", "MISSING_FILE")
			return nil, false
		}
		defer func() { _ = f.Close() }()
		image = &job.File{Name: header.Filename, Data: f}
	}

	if needVideo {
		f, header, err := r.FormFile("video")
		if err != nil {
			writeError(w, http.StatusBadRequest, "video file or videoId is required", "MISSING_FILE")
			return nil, false
		}
		defer func() { _ = f.Close() }()
		video = &job.File{Name: header.Filename, Data: f}
	}

	up, err := h.service.UploadSources(r.Context(), image, video)
	if err != nil {
		h.writeServiceError(w, r, "upload failed", err)
		return nil, false
	}
	return up, true
}

// Download handles GET /download?videoUrl=<id|url|path> and streams the
// artifact as an attachment.
func (h *Handlers) Download(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := q.Get("videoUrl")
	if key == "" {
		key = q.Get("path")
	}
	if key == "" {
		writeError(w, http.StatusBadRequest, "videoUrl is required", "MISSING_PATH")
		return
	}

	a, err := h.gateway.Open(key)
	if err != nil {
		h.writeServiceError(w, r, "download failed", err)
		return
	}
	defer func() { _ = a.Close() }()

	w.Header().Set("Content-Type", contentType(a.Name))
	w.Header().Set("Content-Length", strconv.FormatInt(a.Size, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.Name}))
	w.WriteHeader(http.StatusOK)

	if _, err := h.gateway.Copy(r.Context(), w, a); err != nil {
		// Headers are out; aborting makes the client see a truncated body
		// instead of a complete-looking one.
		panic(http.ErrAbortHandler)
	}
}

// ServeUpload handles GET /uploads/{name}: inline retrieval with range support.
func (h *Handlers) ServeUpload(w http.ResponseWriter, r *http.Request) {
	a, err := h.gateway.Open(r.PathValue("name"))
	if err != nil {
		h.writeServiceError(w, r, "retrieval failed", err)
		return
	}
	defer func() { _ = a.Close() }()

	w.Header().Set("Content-Type", contentType(a.Name))
	http.ServeContent(w, r, a.Name, a.ModTime, a.File)
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	foundJob, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get job", "JOB_FETCH_FAILED")
		return
	}

	resp := JobResponse{
		ID:         foundJob.ID,
		Status:     string(foundJob.Status),
		Error:      foundJob.Error,
		Geometry:   foundJob.Geometry,
		ArtifactID: foundJob.ArtifactID,
		CreatedAt:  foundJob.CreatedAt,
	}
	if !foundJob.StartedAt.IsZero() {
		resp.StartedAt = &foundJob.StartedAt
	}
	if !foundJob.CompletedAt.IsZero() {
		resp.CompletedAt = &foundJob.CompletedAt
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetArtifact handles GET /overlays/{id} requests.
func (h *Handlers) GetArtifact(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	a, err := h.service.GetArtifact(r.Context(), id)
	if err != nil {
		if errors.Is(err, artifact.ErrArtifactNotFound) {
			writeError(w, http.StatusNotFound, "artifact not found", "ARTIFACT_NOT_FOUND")
			return
		}
		h.logger.Error("failed to get artifact",
			slog.String("artifact_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get artifact", "ARTIFACT_FETCH_FAILED")
		return
	}

	writeJSON(w, http.StatusOK, ArtifactResponse{
		ID:                a.ID,
		JobID:             a.JobID,
		OverlayedVideoURL: a.URL,
		S3URL:             a.S3URL,
		VideoID:           a.VideoID,
		ImageID:           a.ImageID,
		Geometry:          a.Geometry,
		CreatedAt:         a.CreatedAt,
	})
}

// parseMultipart bounds and parses a multipart or urlencoded body. It
// writes the error response itself and reports whether to continue.
func (h *Handlers) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err = r.ParseMultipartForm(multipartMemory)
	} else {
		err = r.ParseForm()
	}
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), "UPLOAD_TOO_LARGE")
		return false
	}
	h.logger.Warn("failed to parse form", slog.String("error", err.Error()))
	writeError(w, http.StatusBadRequest, "invalid form body", "INVALID_FORM")
	return false
}

// parseOverlayForm reads the overlay fields. x and y are required; a
// missing size or preview frame is left at zero for the mapper to reject.
func parseOverlayForm(r *http.Request) (OverlayRequest, error) {
	var req OverlayRequest
	var err error

	fields := []struct {
		name     string
		dst      *float64
		required bool
	}{
		{"x", &req.X, true},
		{"y", &req.Y, true},
		{"width", &req.Width, false},
		{"height", &req.Height, false},
		{"previewWidth", &req.PreviewWidth, false},
		{"previewHeight", &req.PreviewHeight, false},
	}
	for _, f := range fields {
		*f.dst, err = formFloat(r, f.name)
		if errors.Is(err, errMissingNumber) && !f.required {
			continue
		}
		if err != nil {
			return req, fmt.Errorf("%s: %w", f.name, err)
		}
	}

	req.ImageRef = firstValue(r, "imageId", "imageUrl")
	req.VideoRef = firstValue(r, "videoId", "videoUrl")
	return req, nil
}

func formFloat(r *http.Request, name string) (float64, error) {
	raw := strings.TrimSpace(r.FormValue(name))
	if raw == "" {
		return 0, errMissingNumber
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", raw)
	}
	return v, nil
}

func firstValue(r *http.Request, names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(r.FormValue(n)); v != "" {
			return v
		}
	}
	return ""
}

// mediaTypes covers extensions the system MIME table may not know.
var mediaTypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

func contentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := mediaTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// writeServiceError maps domain failures to status codes. Messages are
// fixed so that no internal path or diagnostic reaches the client.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status, code, message := http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"

	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, geometry.ErrInvalidDimensions):
		status, code, message = http.StatusBadRequest, "INVALID_DIMENSIONS", "overlay width and height must be positive and within the frame size limit"
	case errors.Is(err, geometry.ErrGeometryUnavailable):
		status, code, message = http.StatusUnprocessableEntity, "GEOMETRY_UNAVAILABLE", "preview and native frame sizes are required"
	case errors.Is(err, storage.ErrForbidden):
		status, code, message = http.StatusForbidden, "FORBIDDEN", "path is outside the artifact store"
	case errors.Is(err, storage.ErrNotFound):
		status, code, message = http.StatusNotFound, "NOT_FOUND", "artifact not found"
	case errors.As(err, &tooLarge):
		status, code, message = http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE", "request body too large"
	case errors.Is(err, storage.ErrStorageWriteFailed):
		code, message = "STORAGE_WRITE_FAILED", "failed to store upload"
	case errors.Is(err, media.ErrResizeFailed):
		code, message = "RESIZE_FAILED", "failed to resize overlay image"
	case errors.Is(err, media.ErrCompositionFailed):
		code, message = "COMPOSITION_FAILED", "failed to composite video"
	case errors.Is(err, retrieval.ErrStreamingFailed):
		code, message = "STREAMING_FAILED", "failed to read artifact"
	}

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, msg,
		slog.String("code", code),
		slog.String("error", err.Error()),
	)

	writeError(w, status, message, code)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
