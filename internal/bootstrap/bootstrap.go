// Package bootstrap provides dependency initialization for the Kuiper API.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maauso/kuiper-api/internal/audio"
	"github.com/maauso/kuiper-api/internal/auth"
	"github.com/maauso/kuiper-api/internal/config"
	"github.com/maauso/kuiper-api/internal/metrics"
	"github.com/maauso/kuiper-api/internal/recording"
	"github.com/maauso/kuiper-api/internal/script"
	"github.com/maauso/kuiper-api/internal/storage"
	"github.com/maauso/kuiper-api/internal/supabase"
	"github.com/maauso/kuiper-api/internal/usersettings"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Scripts     *script.Service
	Recordings  *recording.Service
	Settings    *usersettings.Service
	Synthesizer audio.Synthesizer
	Verifier    auth.Verifier
	Metrics     *metrics.Metrics
}

// repositories groups the metadata stores of one backend.
type repositories struct {
	scripts    script.Repository
	recordings recording.Repository
	settings   usersettings.Repository
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	// Initialize object storage
	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize metadata repositories
	repos, err := initRepositories(cfg, logger)
	if err != nil {
		return nil, err
	}

	m := metrics.New()

	// Recordings purge on script deletion, so the script service gets the
	// recording service as its purger.
	scriptSvc := script.NewService(repos.scripts, nil, logger)
	recSvc := recording.NewService(
		repos.recordings,
		repos.scripts,
		store,
		logger,
		recording.WithAnalysisObserver(m),
	)
	scriptSvc.SetPurger(recSvc)

	return &Dependencies{
		Scripts:     scriptSvc,
		Recordings:  recSvc,
		Settings:    usersettings.NewService(repos.settings, logger),
		Synthesizer: audio.NewESpeakSynthesizer(cfg.ESpeakPath),
		Verifier:    initVerifier(ctx, cfg, logger),
		Metrics:     m,
	}, nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.ObjectStore, error) {
	if cfg.S3Enabled() {
		s3Store, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
			slog.String("endpoint", cfg.S3Endpoint),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStore(cfg.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("dir", localStore.Root()),
	)
	return localStore, nil
}

// initRepositories uses Supabase when configured and in-memory stores otherwise.
func initRepositories(cfg *config.Config, logger *slog.Logger) (*repositories, error) {
	if !cfg.SupabaseEnabled() {
		logger.Warn("SUPABASE_URL not set, using in-memory metadata store")
		return &repositories{
			scripts:    script.NewMemoryRepository(),
			recordings: recording.NewMemoryRepository(),
			settings:   usersettings.NewMemoryRepository(),
		}, nil
	}

	client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseKey)
	if err != nil {
		return nil, fmt.Errorf("create Supabase client: %w", err)
	}
	logger.Info("Supabase metadata store configured",
		slog.String("url", cfg.SupabaseURL),
	)
	return &repositories{
		scripts:    supabase.NewScriptRepository(client),
		recordings: supabase.NewRecordingRepository(client),
		settings:   supabase.NewSettingsRepository(client),
	}, nil
}

// initVerifier returns nil when tokens cannot be verified; user routes then
// answer 503.
func initVerifier(ctx context.Context, cfg *config.Config, logger *slog.Logger) auth.Verifier {
	jwksURL := cfg.JWKSURL()
	if jwksURL == "" {
		logger.Warn("SUPABASE_URL not set, user routes are disabled")
		return nil
	}

	v, err := auth.NewJWKSVerifier(ctx, jwksURL, cfg.JWTAudience)
	if err != nil {
		logger.Error("failed to initialize JWKS verifier",
			slog.String("jwks_url", jwksURL),
			slog.String("error", err.Error()),
		)
		return nil
	}
	logger.Info("JWT verification configured",
		slog.String("jwks_url", jwksURL),
		slog.String("audience", cfg.JWTAudience),
	)
	return v
}
