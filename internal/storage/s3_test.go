package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewS3Storage(t *testing.T) {
	cfg := S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        "http://localhost:4566", // LocalStack-like endpoint
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	}

	storage, err := NewS3Storage(filepath.Join(t.TempDir(), "uploads"), "", cfg)
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}

	if storage.bucket != cfg.Bucket {
		t.Errorf("bucket = %v, want %v", storage.bucket, cfg.Bucket)
	}
	if storage.region != cfg.Region {
		t.Errorf("region = %v, want %v", storage.region, cfg.Region)
	}
}

func TestS3Storage_InheritsLocalStorage(t *testing.T) {
	cfg := S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        "http://localhost:4566",
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	}

	storage, err := NewS3Storage(filepath.Join(t.TempDir(), "uploads"), "", cfg)
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}

	ctx := context.Background()

	asset, err := storage.Put(ctx, KindImage, "logo.png", bytes.NewReader([]byte("test data")))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	path, err := storage.Locate(asset.URL)
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if filepath.Base(path) != asset.ID {
		t.Errorf("Locate() = %q, want file %q", path, asset.ID)
	}

	if err := storage.Cleanup(ctx, []string{asset.Path}); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
}

func TestS3Storage_Publish_MockServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT method, got %s", r.Method)
		}

		if !strings.Contains(r.URL.Path, "/test-bucket/overlays/output-1.mp4") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		if ct := r.Header.Get("Content-Type"); ct != "video/mp4" {
			t.Errorf("unexpected content type: %s", ct)
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("failed to read body: %v", err)
		}
		if string(body) != "test content" {
			t.Errorf("unexpected body: %s", string(body))
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        server.URL,
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
		KeyPrefix:       "/overlays/",
	}

	storage, err := NewS3Storage(filepath.Join(t.TempDir(), "uploads"), "", cfg)
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}

	url, err := storage.Publish(context.Background(), "output-1.mp4", bytes.NewReader([]byte("test content")))
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	expectedURL := server.URL + "/test-bucket/overlays/output-1.mp4"
	if url != expectedURL {
		t.Errorf("url = %v, want %v", url, expectedURL)
	}
}

func TestS3Storage_Publish_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	storage, err := NewS3Storage(filepath.Join(t.TempDir(), "uploads"), "", S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        server.URL,
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	})
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}

	if _, err := storage.Publish(context.Background(), "k.mp4", bytes.NewReader([]byte("x"))); err == nil {
		t.Error("expected error from failing S3 endpoint")
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := map[string]string{
		"a.mp4": "video/mp4",
		"a.png": "image/png",
		"a":     "application/octet-stream",
	}
	for key, want := range tests {
		if got := contentTypeFor(key); got != want {
			t.Errorf("contentTypeFor(%q) = %q, want %q", key, got, want)
		}
	}
}
