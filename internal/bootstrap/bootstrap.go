// Package bootstrap provides dependency initialization shared by the
// HTTP server and the overlayctl CLI.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"

	"github.com/maauso/videooverlay-api/internal/artifact"
	"github.com/maauso/videooverlay-api/internal/config"
	"github.com/maauso/videooverlay-api/internal/janitor"
	"github.com/maauso/videooverlay-api/internal/job"
	"github.com/maauso/videooverlay-api/internal/media"
	"github.com/maauso/videooverlay-api/internal/retrieval"
	"github.com/maauso/videooverlay-api/internal/storage"
)

// Dependencies holds all initialized dependencies.
type Dependencies struct {
	Store          storage.Storage
	Processor      *media.FFmpegProcessor
	Registry       artifact.Registry
	OverlayService *job.OverlayService
	Gateway        *retrieval.Gateway
	// Janitor is nil when ARTIFACT_TTL is zero.
	Janitor *janitor.Janitor

	redis *redis.Client
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	deps := &Dependencies{Store: store}

	registry, err := deps.initRegistry(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	deps.Registry = registry

	deps.Processor = media.NewFFmpegProcessor(cfg.FFmpegPath,
		media.WithEncoder(cfg.VideoCodec, cfg.VideoPreset, cfg.VideoCRF),
		media.WithLogger(logger),
	)

	jobs := job.NewMemoryRepository()
	deps.OverlayService = job.NewOverlayService(
		store,
		deps.Processor,
		jobs,
		registry,
		job.WithLogger(logger),
		job.WithS3Mirror(cfg.S3Enabled()),
	)

	deps.Gateway = retrieval.NewGateway(store, logger)

	if cfg.ArtifactTTL > 0 {
		j, err := janitor.New(store, registry, cfg.ArtifactTTL, cfg.SweepInterval, logger,
			janitor.WithJobs(jobs),
		)
		if err != nil {
			_ = deps.Close()
			return nil, fmt.Errorf("create janitor: %w", err)
		}
		deps.Janitor = j
	}

	return deps, nil
}

// Close releases external connections.
func (d *Dependencies) Close() error {
	if d.redis != nil {
		return d.redis.Close()
	}
	return nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.StorageDir, cfg.PublicPrefix, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 mirror configured",
			slog.String("storage_dir", s3Store.Root()),
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.StorageDir, cfg.PublicPrefix)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("storage_dir", localStore.Root()),
	)
	return localStore, nil
}

// initRegistry picks Redis when configured, memory otherwise.
func (d *Dependencies) initRegistry(ctx context.Context, cfg *config.Config, logger *slog.Logger) (artifact.Registry, error) {
	if !cfg.RedisEnabled() {
		logger.Info("in-memory artifact registry configured")
		return artifact.NewMemoryRegistry(), nil
	}

	client, err := artifact.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("create artifact registry: %w", err)
	}
	d.redis = client

	logger.Info("redis artifact registry configured",
		slog.String("addr", cfg.RedisAddr),
		slog.Int("db", cfg.RedisDB),
	)
	return artifact.NewRedisRegistry(client, ""), nil
}
