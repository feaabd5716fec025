// Package main is the entry point for the quote-keeper service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/clients"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/clients/acl"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/http"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/inbox"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/storage/memory"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/storage/seedfile"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/storage/sqlite"
	"github.com/jsamuelsen/quote-keeper/internal/app"
	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/platform/config"
	"github.com/jsamuelsen/quote-keeper/internal/platform/logging"
	"github.com/jsamuelsen/quote-keeper/internal/platform/telemetry"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

// Build-time variables, injected via ldflags.
// Example: go build -ldflags "-X main.Version=1.0.0 -X main.Commit=$(git rev-parse HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	// Version is the semantic version of the service.
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "unknown"

	// BuildTime is the timestamp when the binary was built.
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Determine profile from environment
	profile := os.Getenv("APP_ENVIRONMENT")
	if profile == "" {
		profile = "local"
	}

	// 2. Load and validate configuration (fail fast)
	cfg, err := config.Load(profile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	policy, err := domain.ParseMergePolicy(cfg.Sync.Policy)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// 3. Initialize logging
	logger := logging.New(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	})
	logging.SetDefault(logger)

	logger.Info("starting service",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("environment", cfg.App.Environment),
	)

	// 4. Initialize telemetry (noop if disabled)
	telProvider, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	defer func() {
		if shutdownErr := telProvider.Shutdown(context.WithoutCancel(ctx)); shutdownErr != nil {
			logger.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	// 5. Open durable storage and the seed collection
	db, err := sqlite.New(ctx, cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("closing store", slog.Any("error", closeErr))
		}
	}()

	var seed domain.QuoteCollection
	if cfg.Store.SeedFile != "" {
		if seed, err = seedfile.Load(cfg.Store.SeedFile); err != nil {
			return fmt.Errorf("loading seed file: %w", err)
		}
	}

	sessions := memory.NewSessionStore(cfg.Session.TTL)

	// 6. Create the remote quote client (ACL pattern)
	httpClient, err := clients.New(&clients.Config{
		BaseURL:     cfg.Services.Remote.BaseURL,
		ServiceName: cfg.Services.Remote.Name,
		Timeout:     cfg.Client.Timeout,
		Retry:       cfg.Client.Retry,
		Circuit:     cfg.Client.CircuitBreaker,
		Transport:   cfg.Client.Transport,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("creating HTTP client: %w", err)
	}

	remote := acl.NewPostsClient(acl.PostsClientConfig{
		Client:   httpClient,
		MaxItems: cfg.Sync.MaxItems,
		Category: cfg.Sync.Category,
		Logger:   logger,
	})

	// 7. Create application services
	store := app.NewQuoteStore(ctx, app.QuoteStoreConfig{
		Store:  db,
		Policy: policy,
		Seed:   seed,
		Logger: logger,
	})

	quoteService := app.NewQuoteService(app.QuoteServiceConfig{
		Store:       store,
		Preferences: db,
		Sessions:    sessions,
		Publisher:   remote,
		Logger:      logger,
	})

	syncMetrics, err := telemetry.NewSyncMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("registering sync metrics: %w", err)
	}

	syncer := app.NewSyncer(app.SyncerConfig{
		Source:   remote,
		Store:    store,
		Interval: cfg.Sync.Interval,
		Metrics:  syncMetrics,
		Logger:   logger,
	})

	// 8. Register health checks; the remote only degrades readiness
	healthRegistry := ports.NewHealthRegistry()
	if err := healthRegistry.Register(db); err != nil {
		return fmt.Errorf("registering %s health check: %w", db.Name(), err)
	}

	if err := healthRegistry.RegisterOptional(remote); err != nil {
		return fmt.Errorf("registering %s health check: %w", remote.Name(), err)
	}

	// 9. Create handlers and the HTTP server
	buildInfo := handlers.NewBuildInfo(Version, Commit, BuildTime)

	server := http.New(&cfg.Server, logger)
	http.SetupRouter(server.Engine(), http.RouterConfig{
		Logger:             logger,
		AuthConfig:         &cfg.Auth,
		AppConfig:          &cfg.App,
		SessionHeader:      cfg.Session.Header,
		HealthHandler:      handlers.NewHealthHandler(healthRegistry, buildInfo),
		QuoteHandler:       handlers.NewQuoteHandler(quoteService),
		PreferencesHandler: handlers.NewPreferencesHandler(quoteService),
		SyncHandler:        handlers.NewSyncHandler(syncer),
		Timeout:            http.DefaultRequestTimeout,
	})

	// 10. Run everything until a shutdown signal or the first failure
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Run(gctx)
	})

	g.Go(func() error {
		sessions.Run(gctx, cfg.Session.TTL, logger)
		return nil
	})

	if cfg.Sync.Enabled {
		g.Go(func() error {
			syncer.Run(gctx)
			return nil
		})
	}

	if cfg.Inbox.Enabled {
		watcher := inbox.New(inbox.Config{
			Dir:      cfg.Inbox.Dir,
			Importer: quoteService,
			Logger:   logger,
		})

		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}

	err = g.Wait()

	logger.Info("shutdown complete")

	return err
}
