package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/http/middleware"
	"github.com/jsamuelsen/quote-keeper/internal/platform/config"
	"github.com/jsamuelsen/quote-keeper/internal/platform/telemetry"
)

// DefaultRequestTimeout is the default timeout for API requests.
const DefaultRequestTimeout = 30 * time.Second

// syncRoute runs against the remote with its own retry budget and is exempt
// from the request timeout.
const syncRoute = "/api/v1/sync"

// RouterConfig contains configuration for setting up the router.
type RouterConfig struct {
	// Logger is the structured logger for request logging.
	Logger *slog.Logger

	// AuthConfig protects write routes when enabled.
	AuthConfig *config.AuthConfig

	// AppConfig names the service in telemetry.
	AppConfig *config.AppConfig

	// SessionHeader carries the client session ID. Defaults to X-Session-ID.
	SessionHeader string

	// HealthHandler serves the /-/ probes.
	HealthHandler *handlers.HealthHandler

	// QuoteHandler serves /quotes. Routes are skipped when nil, as for the
	// handlers below.
	QuoteHandler *handlers.QuoteHandler

	// PreferencesHandler serves /categories and /preferences.
	PreferencesHandler *handlers.PreferencesHandler

	// SyncHandler serves /sync.
	SyncHandler *handlers.SyncHandler

	// Timeout is the default request timeout.
	Timeout time.Duration
}

// SetupRouter configures all routes and middleware on the Gin engine.
// Middleware is applied in the following order (first to last):
//  1. Recovery
//  2. Request ID
//  3. Correlation ID
//  4. Session ID
//  5. OpenTelemetry tracing and metrics
//  6. Logging (skips /-/ probes)
//  7. Timeout (API routes only)
//
// Route groups:
//   - /-/ probes, no auth
//   - /api/v1/ quote API, write routes guarded when auth is enabled
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	serviceName := "quote-keeper"
	if cfg.AppConfig != nil {
		serviceName = cfg.AppConfig.Name
	}

	engine.Use(
		middleware.Recovery(cfg.Logger),
		middleware.RequestID(),
		middleware.CorrelationID(),
		middleware.Session(cfg.SessionHeader),
	)
	engine.Use(telemetry.Middleware(serviceName)...)
	engine.Use(middleware.Logging(cfg.Logger))

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterHealthRoutesOnEngine(engine)
	}

	apiV1 := engine.Group("/api/v1")
	if cfg.Timeout > 0 {
		apiV1.Use(middleware.Timeout(cfg.Timeout, syncRoute))
	}

	setupAPIRoutes(apiV1, cfg)
}

// setupAPIRoutes registers the quote API.
func setupAPIRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	write := middleware.WriteGuards(cfg.AuthConfig)

	if cfg.QuoteHandler != nil {
		cfg.QuoteHandler.RegisterRoutes(rg, write...)
	}

	if cfg.PreferencesHandler != nil {
		cfg.PreferencesHandler.RegisterRoutes(rg, write...)
	}

	if cfg.SyncHandler != nil {
		cfg.SyncHandler.RegisterRoutes(rg, write...)
	}
}
