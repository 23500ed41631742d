// Package bootstrap provides dependency initialization for the PromoReel API.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/promoreel/promoreel-api/internal/config"
	"github.com/promoreel/promoreel-api/internal/history"
	"github.com/promoreel/promoreel-api/internal/pipeline"
	"github.com/promoreel/promoreel-api/internal/storage"
	"github.com/promoreel/promoreel-api/internal/veo"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Orchestrator *pipeline.Orchestrator
	Client       *veo.HTTPClient
	Assets       storage.Storage
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	assets, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	clientOpts := []veo.ClientOption{
		veo.WithAPIKey(cfg.GeminiAPIKey),
		veo.WithTTSModel(cfg.TTSModel),
		veo.WithTextModel(cfg.TextModel),
		veo.WithPollInterval(cfg.PollInterval()),
		veo.WithMaxPollAttempts(cfg.MaxPollAttempts),
	}
	if cfg.GeminiBaseURL != "" {
		clientOpts = append(clientOpts, veo.WithBaseURL(cfg.GeminiBaseURL))
	}

	client, err := veo.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create generative API client: %w", err)
	}

	repo := pipeline.NewMemoryRepository()
	hist := history.NewStore(cfg.ResolvedHistoryPath(), logger)

	orch := pipeline.NewOrchestrator(
		client,
		client,
		repo,
		hist,
		assets,
		logger,
		pipeline.WithModelCatalog(pipeline.ModelCatalog{
			Fast:    cfg.VideoModelFast,
			Quality: cfg.VideoModelQuality,
		}),
		pipeline.WithS3Publication(cfg.S3Enabled()),
	)

	return &Dependencies{
		Orchestrator: orch,
		Client:       client,
		Assets:       assets,
	}, nil
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
		s3Store, err := storage.NewS3Storage(cfg.DataDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 publication configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("data_dir", cfg.DataDir),
	)
	return localStore, nil
}
