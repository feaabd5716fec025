package benchmark

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apihttp "github.com/jsamuelsen/quote-keeper/internal/adapters/http"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/storage/memory"
	"github.com/jsamuelsen/quote-keeper/internal/adapters/storage/sqlite"
	"github.com/jsamuelsen/quote-keeper/internal/app"
	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

func init() {
	// Set Gin to release mode for accurate benchmarks
	gin.SetMode(gin.ReleaseMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// collection builds n quotes spread over ten categories.
func collection(n int) domain.QuoteCollection {
	quotes := make(domain.QuoteCollection, n)
	for i := range quotes {
		quotes[i] = domain.Quote{
			Text:     fmt.Sprintf("quote number %d", i),
			Category: fmt.Sprintf("category-%d", i%10),
		}
	}

	return quotes
}

// setupRouter serves the full API over an in-memory store seeded with n quotes.
func setupRouter(b *testing.B, n int) *gin.Engine {
	b.Helper()

	logger := discardLogger()
	kv := memory.NewStore()

	service := app.NewQuoteService(app.QuoteServiceConfig{
		Store: app.NewQuoteStore(context.Background(), app.QuoteStoreConfig{
			Store:  kv,
			Seed:   collection(n),
			Logger: logger,
		}),
		Preferences: kv,
		Sessions:    memory.NewSessionStore(time.Hour),
		Logger:      logger,
	})

	engine := gin.New()
	apihttp.SetupRouter(engine, apihttp.RouterConfig{
		Logger:             logger,
		HealthHandler:      handlers.NewHealthHandler(ports.NewHealthRegistry(), handlers.BuildInfo{Version: "bench"}),
		QuoteHandler:       handlers.NewQuoteHandler(service),
		PreferencesHandler: handlers.NewPreferencesHandler(service),
		Timeout:            apihttp.DefaultRequestTimeout,
	})

	return engine
}

func benchmarkGET(b *testing.B, engine *gin.Engine, path string) {
	b.Helper()

	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	req.Header.Set("X-Session-ID", "bench-session")

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			b.Fatalf("GET %s: status %d", path, w.Code)
		}
	}
}

// BenchmarkLiveness measures the probe path through the full middleware chain.
func BenchmarkLiveness(b *testing.B) {
	benchmarkGET(b, setupRouter(b, 2), "/-/live")
}

// BenchmarkRandomQuote includes recording the session's last quote.
func BenchmarkRandomQuote(b *testing.B) {
	for _, n := range []int{10, 1000} {
		b.Run(fmt.Sprintf("quotes=%d", n), func(b *testing.B) {
			benchmarkGET(b, setupRouter(b, n), "/api/v1/quotes/random?category=category-3")
		})
	}
}

func BenchmarkListQuotesPage(b *testing.B) {
	benchmarkGET(b, setupRouter(b, 1000), "/api/v1/quotes?category=all&limit=20")
}

func BenchmarkExport(b *testing.B) {
	benchmarkGET(b, setupRouter(b, 1000), "/api/v1/quotes/export")
}

func BenchmarkAddQuote(b *testing.B) {
	engine := setupRouter(b, 100)
	body := `{"text":"Benchmarks are quotes too.","category":"Bench"}`

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/quotes", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		if w.Code != http.StatusCreated {
			b.Fatalf("add: status %d", w.Code)
		}
	}
}

// BenchmarkReadiness runs the sqlite check and a failing optional remote check.
func BenchmarkReadiness(b *testing.B) {
	db, err := sqlite.New(context.Background(), sqlite.MemoryPath)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = db.Close() })

	registry := ports.NewHealthRegistry()
	_ = registry.Register(db)
	_ = registry.RegisterOptional(&downChecker{name: "remote-quotes"})

	handler := handlers.NewHealthHandler(registry, handlers.BuildInfo{Version: "bench"})

	engine := gin.New()
	handler.RegisterHealthRoutesOnEngine(engine)

	benchmarkGET(b, engine, "/-/ready")
}

func BenchmarkMerge(b *testing.B) {
	local := collection(1000)
	remote := append(collection(50), domain.Quote{Text: "new remote quote", Category: "Server"})

	for _, policy := range []domain.MergePolicy{domain.MergeAdditive, domain.MergeAuthoritative} {
		b.Run(string(policy), func(b *testing.B) {
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				domain.Merge(policy, local, remote)
			}
		})
	}
}

// downChecker always reports the dependency as unreachable.
type downChecker struct {
	name string
}

func (d *downChecker) Name() string {
	return d.name
}

func (d *downChecker) Check(_ context.Context) error {
	return errors.New("connection refused")
}
