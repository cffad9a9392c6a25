package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/phrazzld/scry-avatars/internal/config"
	"github.com/phrazzld/scry-avatars/internal/fetch"
	"github.com/phrazzld/scry-avatars/internal/imagepipe"
	"github.com/phrazzld/scry-avatars/internal/ingest"
	"github.com/phrazzld/scry-avatars/internal/platform/filestore"
	"github.com/phrazzld/scry-avatars/internal/platform/gcs"
	"github.com/phrazzld/scry-avatars/internal/platform/postgres"
	"github.com/phrazzld/scry-avatars/internal/source"
	"github.com/phrazzld/scry-avatars/internal/store"
	"github.com/phrazzld/scry-avatars/internal/task"
	"github.com/spf13/afero"
)

// localAvatarPrefix is where the local backend serves stored avatars.
const localAvatarPrefix = "/avatars"

// application holds the shared dependencies and owns their shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	queue     *task.Queue
	scheduler *task.Scheduler
	janitor   *task.Janitor

	profiles store.ProfileReader
	// localFiles serves uploaded avatars when the local backend is used.
	localFiles http.Handler

	closers []io.Closer
}

// newApplication wires the ingestion pipeline. It does not start any
// background work; see Run.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	ingestConfig, err := buildIngestConfig(cfg.Image)
	if err != nil {
		return nil, err
	}

	objects, err := app.setupObjectStore(ctx)
	if err != nil {
		return nil, err
	}

	profileStore := postgres.NewPostgresProfileStore(db, logger)
	app.profiles = profileStore

	validator := source.NewValidator(cfg.Fetch.AllowedHosts)
	fetcher := fetch.NewFetcher(nil, fetch.Config{
		Timeout:         cfg.Fetch.Timeout,
		MaxPayloadBytes: cfg.Fetch.MaxPayloadBytes,
		AllowHost:       validator.IsAllowed,
	}, logger)

	ingester := ingest.NewIngester(
		validator,
		fetcher,
		imagepipe.NewOptimizer(logger),
		objects,
		profileStore,
		ingestConfig,
		logger,
	)

	app.queue = task.NewQueue(queueConfig(cfg.Queue), logger)
	app.scheduler = task.NewScheduler(app.queue, ingester, logger)
	app.janitor = task.NewJanitor(app.queue, logger)

	logger.Info("application initialized",
		"allowed_hosts", len(cfg.Fetch.AllowedHosts),
		"output_format", ingestConfig.Options.Format,
		"output_size", fmt.Sprintf("%dx%d", ingestConfig.Options.Width, ingestConfig.Options.Height))
	return app, nil
}

// setupObjectStore builds the configured object store backend.
func (app *application) setupObjectStore(ctx context.Context) (store.ObjectStore, error) {
	cfg := app.config.Storage

	switch cfg.Backend {
	case "gcs":
		client, err := gcs.NewClient(ctx, cfg.Endpoint)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, client)
		return gcs.NewObjectStore(client, gcs.Config{
			Bucket:        cfg.Bucket,
			PublicBaseURL: cfg.PublicBaseURL,
			CacheControl:  cfg.CacheControl,
		}, app.logger), nil

	case "local":
		baseURL := cfg.PublicBaseURL
		if baseURL == "" {
			baseURL = localPublicBaseURL(app.config.Server.Port)
		}
		files, err := filestore.NewObjectStore(afero.NewOsFs(), cfg.LocalDir, baseURL, app.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create local object store: %w", err)
		}
		app.localFiles = files.Handler()
		return files, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// localPublicBaseURL is the absolute URL prefix of avatars served by this
// process when no public base URL is configured.
func localPublicBaseURL(port int) string {
	return fmt.Sprintf("http://localhost:%d%s", port, localAvatarPrefix)
}

func buildIngestConfig(cfg config.ImageConfig) (ingest.Config, error) {
	format, err := imagepipe.ParseFormat(cfg.Format)
	if err != nil {
		return ingest.Config{}, fmt.Errorf("invalid image format: %w", err)
	}

	return ingest.Config{
		Limits: imagepipe.Limits{
			MinDimension: cfg.MinDimension,
			MaxDimension: cfg.MaxDimension,
		},
		Options: imagepipe.Options{
			Width:        cfg.Width,
			Height:       cfg.Height,
			Quality:      cfg.Quality,
			Format:       format,
			MaxSizeBytes: cfg.MaxSizeBytes,
			QualityFloor: cfg.QualityFloor,
			QualityStep:  cfg.QualityStep,
		},
	}, nil
}

func queueConfig(cfg config.QueueConfig) task.Config {
	return task.Config{
		TickInterval:    cfg.TickInterval,
		MaxConcurrent:   cfg.MaxConcurrent,
		MaxAttempts:     cfg.MaxAttempts,
		JanitorInterval: cfg.JanitorInterval,
		Retention:       cfg.Retention,
		TaskTimeout:     cfg.TaskTimeout,
	}
}

// Run starts the scheduler and janitor, serves HTTP until ctx is done, then
// shuts everything down.
func (app *application) Run(ctx context.Context) error {
	app.scheduler.Start()
	app.janitor.Start()

	err := app.startHTTPServer(ctx, app.setupRouter())
	app.cleanup()
	if err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup stops background work, waiting for in-flight tasks, and releases
// resources.
func (app *application) cleanup() {
	if app.scheduler != nil {
		app.scheduler.Stop()
	}
	if app.janitor != nil {
		app.janitor.Stop()
	}

	for _, c := range app.closers {
		if err := c.Close(); err != nil {
			app.logger.Error("error closing resource", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}

	app.logger.Info("application shutdown completed")
}
