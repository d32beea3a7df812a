// Package server builds the application's dependency graph and runs the
// HTTP server with graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/appvine/apptrack/internal/api"
	"github.com/appvine/apptrack/internal/archive"
	"github.com/appvine/apptrack/internal/config"
	"github.com/appvine/apptrack/internal/crawl"
	"github.com/appvine/apptrack/internal/extract"
	"github.com/appvine/apptrack/internal/logging"
	"github.com/appvine/apptrack/internal/publisher"
	memorypublisher "github.com/appvine/apptrack/internal/publisher/memory"
	gcppublisher "github.com/appvine/apptrack/internal/publisher/pubsub"
	"github.com/appvine/apptrack/internal/scraper"
	"github.com/appvine/apptrack/internal/storage/postgres"
)

// App contains the application's dependencies.
type App struct {
	cfg          config.Config
	logger       *zap.Logger
	apiServer    *api.Server
	store        *postgres.ApplicationStore
	gemini       *extract.Gemini
	pubsubClient *pubsub.Client
	pubsubTopic  *pubsub.Topic
	gcsClient    *storage.Client
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies", zap.Int("port", cfg.Server.Port))

	if err := setupStore(ctx, app); err != nil {
		return nil, err
	}

	archiveStore, err := setupArchive(ctx, app)
	if err != nil {
		return nil, err
	}

	pub, err := setupPublisher(ctx, app)
	if err != nil {
		return nil, err
	}

	scraperCfg := scraper.Config{
		Extractor:     setupExtractor(ctx, app),
		Store:         app.store,
		Archive:       archiveStore,
		Publisher:     pub,
		Topic:         cfg.PubSub.TopicName,
		ArchivePrefix: cfg.Archive.Prefix,
		CrawlBudget:   cfg.CrawlBudget(),
	}
	if cfg.Apify.Token != "" {
		crawler, err := crawl.NewClient(crawl.Config{
			Token:              cfg.Apify.Token,
			Actor:              cfg.Apify.Actor,
			BaseURL:            cfg.Apify.BaseURL,
			Wait:               cfg.CrawlBudget(),
			DefaultMaxRequests: cfg.Apify.DefaultMaxRequests,
		})
		if err != nil {
			return nil, fmt.Errorf("crawl client init failed: %w", err)
		}
		scraperCfg.Crawler = crawler
	} else {
		logger.Warn("no apify token configured, scrape requests will fail")
	}

	svc := scraper.New(scraperCfg, logger.Named("scraper"))
	app.apiServer = api.NewServer(app.store, svc, cfg, logger.Named("api"))
	return app, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	return a.Close()
}

// Close releases every external client the app holds.
func (a *App) Close() error {
	if a.pubsubTopic != nil {
		a.pubsubTopic.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.gemini != nil {
		if err := a.gemini.Close(); err != nil {
			a.logger.Warn("gemini client close failed", zap.Error(err))
		}
	}
	if a.store != nil {
		a.store.Close()
	}
	_ = a.logger.Sync()
	a.logger.Info("shutdown complete")
	return nil
}

func setupStore(ctx context.Context, app *App) error {
	if app.cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn must be set")
	}
	store, err := postgres.NewApplicationStore(ctx, postgres.ApplicationStoreConfig{
		DSN:             app.cfg.Database.DSN,
		MaxConns:        app.cfg.Database.MaxConns,
		MinConns:        app.cfg.Database.MinConns,
		MaxConnLifetime: time.Duration(app.cfg.Database.MaxConnLifetimeMin) * time.Minute,
	})
	if err != nil {
		return fmt.Errorf("application store init failed: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return fmt.Errorf("schema init failed: %w", err)
	}
	app.store = store
	app.logger.Info("application store initialized")
	return nil
}

func setupArchive(ctx context.Context, app *App) (archive.Store, error) {
	switch app.cfg.Archive.Backend {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.gcsClient = client
		store, err := archive.NewGCS(client, app.cfg.Archive.Bucket)
		if err != nil {
			return nil, fmt.Errorf("gcs archive init failed: %w", err)
		}
		app.logger.Info("using gcs archive backend", zap.String("bucket", app.cfg.Archive.Bucket))
		return store, nil
	case "local":
		store, err := archive.NewLocal(app.cfg.Archive.Dir)
		if err != nil {
			return nil, fmt.Errorf("local archive init failed: %w", err)
		}
		app.logger.Info("using local archive backend", zap.String("dir", app.cfg.Archive.Dir))
		return store, nil
	default:
		app.logger.Info("using in-memory archive backend")
		return archive.NewMemory(), nil
	}
}

func setupPublisher(ctx context.Context, app *App) (publisher.Publisher, error) {
	if app.cfg.PubSub.ProjectID == "" || app.cfg.PubSub.TopicName == "" {
		app.logger.Warn("no pub/sub topic configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	client, err := pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.pubsubClient = client
	app.pubsubTopic = client.Topic(app.cfg.PubSub.TopicName)
	app.logger.Info("pub/sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return gcppublisher.New(app.pubsubTopic), nil
}

func setupExtractor(ctx context.Context, app *App) *extract.Extractor {
	if app.cfg.Gemini.APIKey == "" {
		app.logger.Warn("no gemini api key configured, extraction will fail")
		return extract.New(nil)
	}
	gem, err := extract.NewGemini(ctx, extract.GeminiConfig{
		APIKey:  app.cfg.Gemini.APIKey,
		Model:   app.cfg.Gemini.Model,
		Timeout: app.cfg.ExtractionBudget(),
	})
	if err != nil {
		app.logger.Warn("gemini client init failed", zap.Error(err))
		return extract.New(nil)
	}
	app.gemini = gem
	app.logger.Info("gemini extractor initialized", zap.String("model", app.cfg.Gemini.Model))
	return extract.New(gem)
}
