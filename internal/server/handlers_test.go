package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/videooverlay-api/internal/artifact"
	"github.com/maauso/videooverlay-api/internal/job"
	"github.com/maauso/videooverlay-api/internal/media"
	"github.com/maauso/videooverlay-api/internal/retrieval"
	"github.com/maauso/videooverlay-api/internal/storage"
)

// mockProcessor implements media.Processor for testing.
type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) ProbeVideo(ctx context.Context, path string) (*media.VideoInfo, error) {
	args := m.Called(ctx, path)
	info, _ := args.Get(0).(*media.VideoInfo)
	return info, args.Error(1)
}

func (m *mockProcessor) ResizeImage(ctx context.Context, src, dst string, w, h int) error {
	args := m.Called(ctx, src, dst, w, h)
	return args.Error(0)
}

func (m *mockProcessor) StartComposite(ctx context.Context, in media.CompositeInput) (*media.Pending, error) {
	args := m.Called(ctx, in)
	if fn, ok := args.Get(0).(func(media.CompositeInput) *media.Pending); ok {
		return fn(in), args.Error(1)
	}
	p, _ := args.Get(0).(*media.Pending)
	return p, args.Error(1)
}

func writeOutput(in media.CompositeInput) *media.Pending {
	err := os.WriteFile(in.OutputPath, []byte("composited video"), 0o600)
	return media.Settled(in.OutputPath, err)
}

func failComposite(in media.CompositeInput) *media.Pending {
	return media.Settled(in.OutputPath, fmt.Errorf("%w: %w", media.ErrCompositionFailed, &media.FFmpegError{
		Stderr: "Error opening input " + in.VideoPath,
		Err:    errors.New("exit status 1"),
	}))
}

type testServer struct {
	store   *storage.LocalStorage
	proc    *mockProcessor
	handler http.Handler
}

func newTestServer(t *testing.T, opts ...HandlerOption) *testServer {
	t.Helper()
	return newTestServerWithConfig(t, DefaultConfig(), opts...)
}

func newTestServerWithConfig(t *testing.T, cfg Config, opts ...HandlerOption) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := storage.NewLocalStorage(filepath.Join(t.TempDir(), "uploads"), cfg.PublicPrefix)
	require.NoError(t, err)

	proc := new(mockProcessor)
	svc := job.NewOverlayService(store, proc, job.NewMemoryRepository(), artifact.NewMemoryRegistry(),
		job.WithLogger(logger),
	)
	h := NewHandlers(svc, retrieval.NewGateway(store, logger), logger, opts...)

	return &testServer{
		store:   store,
		proc:    proc,
		handler: NewRouter(h, logger, cfg),
	}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) expectPipeline(composite func(media.CompositeInput) *media.Pending) {
	ts.proc.On("ProbeVideo", mock.Anything, mock.Anything).
		Return(&media.VideoInfo{Width: 1920, Height: 1080}, nil)
	ts.proc.On("ResizeImage", mock.Anything, mock.Anything, mock.Anything, 450, 450).Return(nil)
	ts.proc.On("StartComposite", mock.Anything, mock.MatchedBy(func(in media.CompositeInput) bool {
		return in.X == 300 && in.Y == 150
	})).Return(composite, nil)
}

func (ts *testServer) files(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(ts.store.Root())
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// upload stores a pair through POST /upload.
func (ts *testServer) upload(t *testing.T) UploadResponse {
	t.Helper()
	rec := ts.do(multipartRequest(t, "/upload", nil, sourceFiles()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp UploadResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

type formFile struct {
	field, name, content string
}

func sourceFiles() []formFile {
	return []formFile{
		{"image", "logo.png", "png bytes"},
		{"video", "clip.mp4", "mp4 bytes"},
	}
}

func scenarioFields() map[string]string {
	return map[string]string{
		"x": "100", "y": "50", "width": "150", "height": "150",
		"previewWidth": "640", "previewHeight": "360",
	}
}

func multipartRequest(t *testing.T, target string, fields map[string]string, files []formFile) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = io.WriteString(part, f.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestUpload_Success(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.upload(t)

	assert.Equal(t, "uploads/"+resp.ImageID, resp.ImageURL)
	assert.Equal(t, "uploads/"+resp.VideoID, resp.VideoURL)
	assert.True(t, strings.HasPrefix(resp.ImageID, "image-"))
	assert.True(t, strings.HasSuffix(resp.VideoID, ".mp4"))
	assert.ElementsMatch(t, []string{resp.ImageID, resp.VideoID}, ts.files(t))
}

func TestUpload_MissingFile(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(multipartRequest(t, "/upload", nil, sourceFiles()[:1]))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MISSING_FILE", decodeError(t, rec).Code)
}

func TestUpload_TooLarge(t *testing.T) {
	ts := newTestServer(t, WithMaxUploadBytes(64))

	files := []formFile{
		{"image", "logo.png", strings.Repeat("x", 1024)},
		{"video", "clip.mp4", "mp4 bytes"},
	}
	rec := ts.do(multipartRequest(t, "/upload", nil, files))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "UPLOAD_TOO_LARGE", decodeError(t, rec).Code)
	assert.Empty(t, ts.files(t))
}

func TestOverlay_WithUploadedIDs(t *testing.T) {
	ts := newTestServer(t)
	up := ts.upload(t)
	ts.expectPipeline(writeOutput)

	fields := scenarioFields()
	fields["imageId"] = up.ImageID
	fields["videoUrl"] = up.VideoURL
	rec := ts.do(multipartRequest(t, "/overlay", fields, nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp OverlayResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	assert.Equal(t, "uploads/"+resp.ID, resp.OverlayedVideoURL)
	assert.Equal(t, "/download?videoUrl="+url.QueryEscape(resp.OverlayedVideoURL), resp.DownloadURL)
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, 300, resp.Geometry.X)
	assert.Equal(t, 150, resp.Geometry.Y)
	assert.Equal(t, 450, resp.Geometry.Width)
	assert.Equal(t, 450, resp.Geometry.Height)
	assert.Empty(t, resp.S3URL)
	ts.proc.AssertExpectations(t)
}

func TestOverlay_WithResubmittedFiles(t *testing.T) {
	ts := newTestServer(t)
	ts.expectPipeline(writeOutput)

	rec := ts.do(multipartRequest(t, "/overlay", scenarioFields(), sourceFiles()))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	// image, video, resized image and output
	assert.Len(t, ts.files(t), 4)
}

func TestOverlay_ZeroWidth(t *testing.T) {
	ts := newTestServer(t)

	fields := scenarioFields()
	fields["width"] = "0"
	rec := ts.do(multipartRequest(t, "/overlay", fields, sourceFiles()))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_DIMENSIONS", decodeError(t, rec).Code)
	assert.Empty(t, ts.files(t), "nothing is stored for a rejected request")
	ts.proc.AssertNotCalled(t, "ProbeVideo", mock.Anything, mock.Anything)
}

func TestOverlay_MissingPreviewSize(t *testing.T) {
	ts := newTestServer(t)
	up := ts.upload(t)

	fields := scenarioFields()
	delete(fields, "previewWidth")
	delete(fields, "previewHeight")
	fields["imageId"] = up.ImageID
	fields["videoId"] = up.VideoID
	rec := ts.do(multipartRequest(t, "/overlay", fields, nil))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "GEOMETRY_UNAVAILABLE", decodeError(t, rec).Code)
	ts.proc.AssertNotCalled(t, "ProbeVideo", mock.Anything, mock.Anything)
}

func TestOverlay_MissingPreviewSize_ResubmittedFiles(t *testing.T) {
	ts := newTestServer(t)

	fields := scenarioFields()
	delete(fields, "previewWidth")
	delete(fields, "previewHeight")
	rec := ts.do(multipartRequest(t, "/overlay", fields, sourceFiles()))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "GEOMETRY_UNAVAILABLE", decodeError(t, rec).Code)
	assert.Empty(t, ts.files(t), "nothing is stored for a rejected request")
}

func TestOverlay_OversizedOverlay(t *testing.T) {
	ts := newTestServer(t)
	up := ts.upload(t)
	ts.proc.On("ProbeVideo", mock.Anything, mock.Anything).
		Return(&media.VideoInfo{Width: 1920, Height: 1080}, nil)

	fields := scenarioFields()
	fields["previewWidth"] = "64"
	fields["previewHeight"] = "36"
	fields["width"] = "1000"
	fields["height"] = "1000"
	fields["imageId"] = up.ImageID
	fields["videoId"] = up.VideoID
	rec := ts.do(multipartRequest(t, "/overlay", fields, nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_DIMENSIONS", decodeError(t, rec).Code)
	assert.ElementsMatch(t, []string{up.ImageID, up.VideoID}, ts.files(t))
	ts.proc.AssertNotCalled(t, "ResizeImage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOverlay_PartialResubmission(t *testing.T) {
	t.Run("image by id, video file", func(t *testing.T) {
		ts := newTestServer(t)
		up := ts.upload(t)
		ts.expectPipeline(writeOutput)

		fields := scenarioFields()
		fields["imageId"] = up.ImageID
		rec := ts.do(multipartRequest(t, "/overlay", fields, sourceFiles()[1:]))

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		// uploaded pair, new video, resized image and output
		assert.Len(t, ts.files(t), 5)
	})

	t.Run("both files with image id", func(t *testing.T) {
		ts := newTestServer(t)
		up := ts.upload(t)
		ts.expectPipeline(writeOutput)

		fields := scenarioFields()
		fields["imageId"] = up.ImageID
		rec := ts.do(multipartRequest(t, "/overlay", fields, sourceFiles()))

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var images int
		for _, name := range ts.files(t) {
			if strings.HasPrefix(name, "image-") {
				images++
			}
		}
		assert.Equal(t, 1, images, "the image file is ignored when imageId is given")
		assert.Len(t, ts.files(t), 5)
	})

	t.Run("missing needed file", func(t *testing.T) {
		ts := newTestServer(t)
		up := ts.upload(t)

		fields := scenarioFields()
		fields["videoId"] = up.VideoID
		rec := ts.do(multipartRequest(t, "/overlay", fields, sourceFiles()[1:]))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "MISSING_FILE", decodeError(t, rec).Code)
		assert.ElementsMatch(t, []string{up.ImageID, up.VideoID}, ts.files(t))
	})
}

func TestOverlay_InvalidForm(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]string)
		code   string
	}{
		{"non-numeric x", func(f map[string]string) { f["x"] = "left" }, "INVALID_FORM"},
		{"missing y", func(f map[string]string) { delete(f, "y") }, "INVALID_FORM"},
		{"x out of bounds", func(f map[string]string) { f["x"] = "1e9" }, "VALIDATION_ERROR"},
		{"width out of bounds", func(f map[string]string) { f["width"] = "200000" }, "VALIDATION_ERROR"},
		{"negative preview width", func(f map[string]string) { f["previewWidth"] = "-5" }, "VALIDATION_ERROR"},
		{"fractional preview height", func(f map[string]string) { f["previewHeight"] = "0.5" }, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			fields := scenarioFields()
			tt.mutate(fields)

			rec := ts.do(multipartRequest(t, "/overlay", fields, sourceFiles()))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Code)
		})
	}
}

func TestOverlay_MissingSources(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(multipartRequest(t, "/overlay", scenarioFields(), nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "MISSING_FILE", decodeError(t, rec).Code)
}

func TestOverlay_UnknownReference(t *testing.T) {
	ts := newTestServer(t)
	up := ts.upload(t)

	fields := scenarioFields()
	fields["imageId"] = "image-missing.png"
	fields["videoId"] = up.VideoID
	rec := ts.do(multipartRequest(t, "/overlay", fields, nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Code)
}

func TestOverlay_CompositionFailure(t *testing.T) {
	ts := newTestServer(t)
	up := ts.upload(t)
	ts.expectPipeline(failComposite)

	fields := scenarioFields()
	fields["imageId"] = up.ImageID
	fields["videoId"] = up.VideoID
	rec := ts.do(multipartRequest(t, "/overlay", fields, nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, ts.store.Root(), "paths never reach the client")
	assert.NotContains(t, body, "Error opening input")

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	assert.Equal(t, "COMPOSITION_FAILED", resp.Code)
	assert.ElementsMatch(t, []string{up.ImageID, up.VideoID}, ts.files(t))
}

func TestDownload_Success(t *testing.T) {
	ts := newTestServer(t)
	up := ts.upload(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/download?videoUrl="+url.QueryEscape(up.VideoURL), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, "9", rec.Header().Get("Content-Length"))
	assert.Equal(t, `attachment; filename=`+up.VideoID, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "mp4 bytes", rec.Body.String())
}

func TestDownload_KeyForms(t *testing.T) {
	ts := newTestServer(t)
	up := ts.upload(t)

	for _, q := range []string{
		"videoUrl=" + up.VideoID,
		"videoUrl=" + url.QueryEscape("/"+up.VideoURL),
		"path=" + url.QueryEscape(filepath.Join(ts.store.Root(), up.VideoID)),
	} {
		rec := ts.do(httptest.NewRequest(http.MethodGet, "/download?"+q, nil))
		assert.Equal(t, http.StatusOK, rec.Code, q)
	}
}

func TestDownload_Errors(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		status int
		code   string
	}{
		{"missing parameter", "", http.StatusBadRequest, "MISSING_PATH"},
		{"traversal", "videoUrl=" + url.QueryEscape("uploads/../../etc/passwd"), http.StatusForbidden, "FORBIDDEN"},
		{"absolute outside root", "videoUrl=" + url.QueryEscape("/etc/passwd"), http.StatusForbidden, "FORBIDDEN"},
		{"missing file", "videoUrl=uploads/output-missing.mp4", http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)

			rec := ts.do(httptest.NewRequest(http.MethodGet, "/download?"+tt.query, nil))

			assert.Equal(t, tt.status, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotContains(t, resp.Error, "passwd")
		})
	}
}

func TestServeUpload_Range(t *testing.T) {
	ts := newTestServer(t)
	up := ts.upload(t)

	req := httptest.NewRequest(http.MethodGet, "/uploads/"+up.VideoID, nil)
	req.Header.Set("Range", "bytes=0-2")
	rec := ts.do(req)

	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "mp4", rec.Body.String())
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Header().Get("Content-Disposition"))
}

func TestServeUpload_NotFound(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/uploads/video-missing.mp4", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeUpload_PublicPrefix(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PublicPrefix = "media"
	ts := newTestServerWithConfig(t, cfg)
	up := ts.upload(t)

	require.True(t, strings.HasPrefix(up.VideoURL, "media/"), up.VideoURL)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/"+up.VideoURL, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mp4 bytes", rec.Body.String())

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/uploads/"+up.VideoID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetJobAndArtifact(t *testing.T) {
	ts := newTestServer(t)
	up := ts.upload(t)
	ts.expectPipeline(writeOutput)

	fields := scenarioFields()
	fields["imageId"] = up.ImageID
	fields["videoId"] = up.VideoID
	rec := ts.do(multipartRequest(t, "/overlay", fields, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var overlay OverlayResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&overlay))

	t.Run("job", func(t *testing.T) {
		rec := ts.do(httptest.NewRequest(http.MethodGet, "/jobs/"+overlay.JobID, nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp JobResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "SUCCEEDED", resp.Status)
		assert.Equal(t, overlay.ID, resp.ArtifactID)
		assert.Empty(t, resp.Error)
		assert.NotNil(t, resp.StartedAt)
		assert.NotNil(t, resp.CompletedAt)
	})

	t.Run("artifact", func(t *testing.T) {
		rec := ts.do(httptest.NewRequest(http.MethodGet, "/overlays/"+overlay.ID, nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp ArtifactResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, overlay.JobID, resp.JobID)
		assert.Equal(t, up.VideoID, resp.VideoID)
		assert.Equal(t, up.ImageID, resp.ImageID)
		assert.Equal(t, overlay.Geometry, resp.Geometry)
	})

	t.Run("unknown job", func(t *testing.T) {
		rec := ts.do(httptest.NewRequest(http.MethodGet, "/jobs/job-unknown", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "JOB_NOT_FOUND", decodeError(t, rec).Code)
	})

	t.Run("unknown artifact", func(t *testing.T) {
		rec := ts.do(httptest.NewRequest(http.MethodGet, "/overlays/output-unknown.mp4", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "ARTIFACT_NOT_FOUND", decodeError(t, rec).Code)
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("panic becomes 500", func(t *testing.T) {
		h := RecoveryMiddleware(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "INTERNAL_ERROR", decodeError(t, rec).Code)
	})

	t.Run("abort is re-raised", func(t *testing.T) {
		h := RecoveryMiddleware(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic(http.ErrAbortHandler)
		}))

		assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		})
	})
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/overlay", nil)
		req.Header.Set("Origin", "https://editor.example")
		rec := httptest.NewRecorder()

		CORSMiddleware([]string{"https://editor.example"})(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "https://editor.example", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("origin not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()

		CORSMiddleware([]string{"https://editor.example"})(next).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}
