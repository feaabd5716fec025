package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-keeper/internal/platform/logging"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const uuidPattern = `^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`

// TestIDMiddleware covers the request, correlation and session ID middleware,
// which share one implementation.
func TestIDMiddleware(t *testing.T) {
	t.Parallel()

	type capture struct {
		ginID string
		ctxID string
	}

	middlewares := []struct {
		name    string
		header  string
		handler gin.HandlerFunc
		read    func(*gin.Context) capture
	}{
		{
			name:    "request id",
			header:  HeaderRequestID,
			handler: RequestID(),
			read: func(c *gin.Context) capture {
				return capture{GetRequestID(c), RequestIDFromContext(c.Request.Context())}
			},
		},
		{
			name:    "correlation id",
			header:  HeaderCorrelationID,
			handler: CorrelationID(),
			read: func(c *gin.Context) capture {
				return capture{GetCorrelationID(c), CorrelationIDFromContext(c.Request.Context())}
			},
		},
		{
			name:    "session id",
			header:  DefaultSessionHeader,
			handler: Session(""),
			read: func(c *gin.Context) capture {
				return capture{GetSessionID(c), ports.SessionID(c.Request.Context())}
			},
		},
	}

	inputs := []struct {
		name         string
		header       string
		wantPassThru bool
	}{
		{name: "generates when absent", header: "", wantPassThru: false},
		{name: "passes through client value", header: "client-abc-123", wantPassThru: true},
		{name: "replaces oversized value", header: strings.Repeat("x", maxIDLength+1), wantPassThru: false},
		{name: "replaces value with spaces", header: "two words", wantPassThru: false},
	}

	for _, mw := range middlewares {
		for _, in := range inputs {
			t.Run(mw.name+"/"+in.name, func(t *testing.T) {
				t.Parallel()

				var got capture

				router := gin.New()
				router.Use(mw.handler)
				router.GET("/test", func(c *gin.Context) {
					got = mw.read(c)
					c.Status(http.StatusOK)
				})

				w := httptest.NewRecorder()
				req := httptest.NewRequest(http.MethodGet, "/test", nil)
				if in.header != "" {
					req.Header.Set(mw.header, in.header)
				}

				router.ServeHTTP(w, req)

				require.Equal(t, http.StatusOK, w.Code)
				assert.Equal(t, w.Header().Get(mw.header), got.ginID, "echoed in the response")
				assert.Equal(t, got.ginID, got.ctxID, "stored in the request context")

				if in.wantPassThru {
					assert.Equal(t, in.header, got.ginID)
				} else {
					assert.Regexp(t, uuidPattern, got.ginID)
				}
			})
		}
	}
}

func TestSession_CustomHeaderAndIssuedFlag(t *testing.T) {
	t.Parallel()

	var sessions []*ports.Session

	router := gin.New()
	router.Use(Session("X-Client-Session"))
	router.GET("/test", func(c *gin.Context) {
		sessions = append(sessions, ports.GetSession(c.Request.Context()))
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	issued := w.Header().Get("X-Client-Session")
	require.NotEmpty(t, issued)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Client-Session", issued)
	router.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, sessions, 2)
	assert.True(t, sessions[0].Issued)
	assert.False(t, sessions[1].Issued)
	assert.Equal(t, sessions[0].ID, sessions[1].ID)
}

func TestSession_EnrichesContextLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	router := gin.New()
	router.Use(func(c *gin.Context) {
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		c.Request = c.Request.WithContext(logging.WithContext(c.Request.Context(), logger))
	}, Session(""))
	router.GET("/test", func(c *gin.Context) {
		logging.FromContext(c.Request.Context()).Info("handled")
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(DefaultSessionHeader, "sess-42")
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Contains(t, buf.String(), `"session_id":"sess-42"`)
}

func TestMustGetIDs(t *testing.T) {
	t.Parallel()

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, "unknown", MustGetRequestID(c))
	assert.Equal(t, "unknown", MustGetCorrelationID(c))

	c.Set(ContextKeyRequestID, "req-1")
	c.Set(ContextKeyCorrelationID, "corr-1")
	assert.Equal(t, "req-1", MustGetRequestID(c))
	assert.Equal(t, "corr-1", MustGetCorrelationID(c))
}

func TestGetIDFromContext(t *testing.T) {
	t.Parallel()

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Set("string", "value")
	c.Set("number", 42)

	assert.Equal(t, "value", getIDFromContext(c, "string"))
	assert.Empty(t, getIDFromContext(c, "number"))
	assert.Empty(t, getIDFromContext(c, "missing"))
}

func TestLogging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		path      string
		status    int
		skip      []string
		wantLevel string
	}{
		{name: "success at info", path: "/api/v1/quotes?category=Life", status: http.StatusOK, wantLevel: "INFO"},
		{name: "client error at warn", path: "/api/v1/quotes", status: http.StatusBadRequest, wantLevel: "WARN"},
		{name: "server error at error", path: "/api/v1/sync", status: http.StatusServiceUnavailable, wantLevel: "ERROR"},
		{name: "probe paths are skipped", path: "/-/ready", status: http.StatusOK},
		{name: "configured paths are skipped", path: "/favicon.ico", status: http.StatusOK, skip: []string{"/favicon.ico"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, nil))

			router := gin.New()
			router.Use(Logging(logger, tt.skip...))
			router.GET(strings.SplitN(tt.path, "?", 2)[0], func(c *gin.Context) { c.Status(tt.status) })

			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			if tt.wantLevel == "" {
				assert.Empty(t, buf.String())
				return
			}

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, tt.wantLevel, entry["level"])
			assert.Equal(t, "request completed", entry["msg"])
			assert.Equal(t, tt.path, entry["path"])
			assert.InDelta(t, tt.status, entry["status"], 0)
		})
	}
}

func TestRecovery(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	router := gin.New()
	router.Use(Recovery(logger))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/panic", func(c *gin.Context) { panic("something went wrong") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	req.Header.Set(HeaderRequestID, "req-panic")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrorCodeInternal, resp.Error.Code)
	assert.Equal(t, "req-panic", resp.TraceID)

	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), "something went wrong")
}

func TestTimeout(t *testing.T) {
	t.Parallel()

	deadlines := map[string]bool{}

	router := gin.New()
	router.Use(Timeout(5*time.Second, "/sync"))

	for _, path := range []string{"/quotes", "/sync"} {
		router.GET(path, func(c *gin.Context) {
			_, deadlines[path] = c.Request.Context().Deadline()
			c.Status(http.StatusOK)
		})
	}

	for _, path := range []string{"/quotes", "/sync"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	assert.True(t, deadlines["/quotes"], "request context should have deadline")
	assert.False(t, deadlines["/sync"], "skipped path should not have deadline")
}

func TestTimeout_LogsOverrun(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	router := gin.New()
	router.Use(func(c *gin.Context) {
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		c.Request = c.Request.WithContext(logging.WithContext(c.Request.Context(), logger))
	}, Timeout(10*time.Millisecond))
	router.GET("/slow", func(c *gin.Context) {
		<-c.Request.Context().Done()
		c.Status(http.StatusGatewayTimeout)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/slow", nil))

	assert.Contains(t, buf.String(), "request exceeded its deadline")
}
