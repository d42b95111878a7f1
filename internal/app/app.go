// Package app provides the application lifecycle management for the
// repost service.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/gopost/repost/internal/api"
	"github.com/gopost/repost/internal/config"
	"github.com/gopost/repost/internal/database"
	"github.com/gopost/repost/internal/dedup"
	"github.com/gopost/repost/internal/diagnostics"
	"github.com/gopost/repost/internal/fingerprint"
	"github.com/gopost/repost/internal/lock"
	"github.com/gopost/repost/internal/logger"
	"github.com/gopost/repost/internal/metrics"
	"github.com/gopost/repost/internal/pipeline"
	"github.com/gopost/repost/internal/publish"
	"github.com/gopost/repost/internal/queue"
	"github.com/gopost/repost/internal/quota"
	"github.com/gopost/repost/internal/scraper"
	"github.com/gopost/repost/internal/storage"
)

const (
	// DefaultShutdownTimeout is the default timeout for graceful shutdown
	DefaultShutdownTimeout = 30 * time.Second

	pingTimeout = 5 * time.Second
	hoursPerDay = 24
)

// App represents the repost application with all its dependencies
type App struct {
	config      *config.Config
	logger      logger.Logger
	db          *database.Repository
	redisClient *redis.Client
	queue       *queue.Queue
	queueCancel context.CancelFunc
	httpServer  *http.Server
	version     string
}

// Options contains configuration for creating a new App
type Options struct {
	ConfigPath string
	Version    string
}

// New creates a new App instance with all dependencies initialized
func New(opts Options) (*App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	appLogger, err := logger.NewLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	appLogger = appLogger.With(
		logger.String("service", "repost"),
		logger.String("version", opts.Version),
	)

	db, err := database.NewPostgresConnection(database.Config{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		DBName:   cfg.Postgres.DBName,
		SSLMode:  cfg.Postgres.SSLMode,
	})
	if err != nil {
		_ = appLogger.Sync()
		return nil, fmt.Errorf("connect to PostgreSQL: %w", err)
	}
	repo := database.NewRepository(db)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if pingErr := redisClient.Ping(ctx).Err(); pingErr != nil {
		_ = repo.Close()
		_ = appLogger.Sync()
		return nil, fmt.Errorf("connect to Redis: %w", pingErr)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.New(registry)

	// Fingerprints stay cached for the length of the history window.
	cacheTTL := time.Duration(cfg.Pipeline.HistoryWindow) * hoursPerDay * time.Hour

	runner := pipeline.New(cfg, pipeline.Deps{
		Scraper: scraper.NewClient(scraper.Config{
			URL:     cfg.Scraper.URL,
			Token:   cfg.Scraper.Token,
			Timeout: cfg.Scraper.Timeout,
		}, appLogger),
		Hasher: fingerprint.NewHasher(),
		Pub: publish.NewClient(publish.Config{
			URL:          cfg.Publish.URL,
			Token:        cfg.Publish.Token,
			Timeout:      cfg.Publish.Timeout,
			RateLimitRPS: cfg.Publish.RateLimitRPS,
		}, appLogger),
		History: repo,
		Quota:   quota.NewCounter(repo, appLogger),
		Cache:   dedup.NewCache(redisClient, cacheTTL, appLogger),
		Locker:  lock.NewRedisLocker(redisClient, appLogger),
		Metrics: appMetrics,
		Logger:  appLogger,
	})

	var prober diagnostics.ObjectProber
	if cfg.S3.Bucket != "" {
		s3Client, s3Err := storage.NewS3Client(storage.S3Config{
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		}, appLogger)
		if s3Err != nil {
			_ = repo.Close()
			_ = appLogger.Sync()
			return nil, fmt.Errorf("create S3 client: %w", s3Err)
		}
		prober = s3Client
	}

	reporter := diagnostics.NewReporter(
		cfg.Scheduler,
		cfg.Publish.Platforms,
		repo,
		repo,
		prober,
		appLogger,
	)

	queueCtx, queueCancel := context.WithCancel(context.Background())
	jobQueue := queue.New(queueCtx, appLogger)

	handlers := api.NewHandlers(jobQueue, runner, reporter, repo, appLogger)
	router := api.NewRouter(handlers, repo, redisClient, registry, cfg)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router.SetupRoutes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &App{
		config:      cfg,
		logger:      appLogger,
		db:          repo,
		redisClient: redisClient,
		queue:       jobQueue,
		queueCancel: queueCancel,
		httpServer:  httpServer,
		version:     opts.Version,
	}, nil
}

// Run starts the HTTP server and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		a.logger.Info("Starting HTTP server",
			logger.String("address", a.config.Server.Address),
			logger.Bool("debug", a.config.Debug),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	return a.waitForShutdown(ctx, serverErr)
}

// waitForShutdown handles graceful shutdown
func (a *App) waitForShutdown(ctx context.Context, serverErr chan error) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("Shutting down gracefully",
			logger.String("signal", sig.String()),
		)
	case <-ctx.Done():
		a.logger.Info("Shutting down, context cancelled")
	case err := <-serverErr:
		if err != nil {
			a.logger.Error("Server error", logger.Error(err))
			a.queueCancel()
			return err
		}
	}

	a.queueCancel()
	a.shutdownHTTPServer()
	a.logger.Info("Service stopped")
	return nil
}

// shutdownHTTPServer gracefully shuts down the HTTP server
func (a *App) shutdownHTTPServer() {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("Server shutdown error", logger.Error(err))
	} else {
		a.logger.Info("HTTP server stopped")
	}
}

// Close cleans up resources
func (a *App) Close() error {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("Failed to close Redis client", logger.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("Failed to close database", logger.Error(err))
		}
	}
	return a.logger.Sync()
}

// Logger returns the application logger
func (a *App) Logger() logger.Logger {
	return a.logger
}
