package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/maauso/videooverlay-api/internal/storage"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
	// PublicPrefix is the URL prefix stored files are served under. It must
	// match the prefix the storage layer builds public URLs with.
	PublicPrefix string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
		PublicPrefix:   storage.DefaultPublicPrefix,
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	// Register routes with method-based patterns (Go 1.22+)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST /upload", h.Upload)
	mux.HandleFunc("POST /overlay", h.Overlay)
	mux.HandleFunc("GET /download", h.Download)
	mux.HandleFunc("GET /"+publicPrefix(cfg.PublicPrefix)+"/{name}", h.ServeUpload)
	mux.HandleFunc("GET /jobs/{id}", h.GetJob)
	mux.HandleFunc("GET /overlays/{id}", h.GetArtifact)

	// Apply middleware chain
	chain := ChainMiddleware(
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}

func publicPrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return storage.DefaultPublicPrefix
	}
	return prefix
}
