package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-keeper/internal/platform/config"
	"github.com/jsamuelsen/quote-keeper/internal/platform/logging"
)

func TestClaims(t *testing.T) {
	t.Parallel()

	claims := &Claims{
		Subject: "user-1",
		Roles:   []string{"editor"},
		Scopes:  []string{"quotes:read", "quotes:write"},
	}

	assert.True(t, claims.HasRole("editor"))
	assert.False(t, claims.HasRole("admin"))
	assert.True(t, claims.HasAllScopes("quotes:read", "quotes:write"))
	assert.True(t, claims.HasAllScopes())
	assert.False(t, claims.HasAllScopes("quotes:read", "quotes:sync"))
}

func TestExtractClaims(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		config         *config.AuthConfig
		headers        map[string]string
		expectedClaims *Claims
	}{
		{
			name: "uses default headers when config is nil",
			headers: map[string]string{
				defaultSubjectHeader: "user-123",
				defaultRolesHeader:   "editor, viewer,",
				defaultScopesHeader:  "quotes:read  quotes:write",
			},
			expectedClaims: &Claims{
				Subject: "user-123",
				Roles:   []string{"editor", "viewer"},
				Scopes:  []string{"quotes:read", "quotes:write"},
			},
		},
		{
			name: "uses custom config headers",
			config: &config.AuthConfig{
				SubjectHeader: "Custom-User",
				RolesHeader:   "Custom-Roles",
				ScopesHeader:  "Custom-Scopes",
			},
			headers: map[string]string{
				"Custom-User":   "user-456",
				"Custom-Roles":  "admin",
				"Custom-Scopes": "quotes:write",
			},
			expectedClaims: &Claims{
				Subject: "user-456",
				Roles:   []string{"admin"},
				Scopes:  []string{"quotes:write"},
			},
		},
		{
			name:           "returns empty claims when headers not present",
			headers:        map[string]string{},
			expectedClaims: &Claims{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/test", nil)

			for key, value := range tt.headers {
				c.Request.Header.Set(key, value)
			}

			assert.Equal(t, tt.expectedClaims, ExtractClaims(c, tt.config))
		})
	}
}

func TestGetClaims(t *testing.T) {
	t.Parallel()

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, GetClaims(c))

	c.Set(ContextKeyClaims, &Claims{Subject: "user-123"})

	claims := GetClaims(c)
	require.NotNil(t, claims)
	assert.Equal(t, "user-123", claims.Subject)
}

func TestWriteGuards(t *testing.T) {
	t.Parallel()

	enabled := &config.AuthConfig{Enabled: true}
	scoped := &config.AuthConfig{Enabled: true, WriteScope: "quotes:write"}

	tests := []struct {
		name       string
		cfg        *config.AuthConfig
		headers    map[string]string
		wantStatus int
		wantCode   string
	}{
		{name: "nil config allows", cfg: nil, wantStatus: http.StatusOK},
		{name: "disabled allows", cfg: &config.AuthConfig{}, wantStatus: http.StatusOK},
		{
			name:       "missing subject is unauthorized",
			cfg:        enabled,
			wantStatus: http.StatusUnauthorized,
			wantCode:   dto.ErrorCodeUnauthorized,
		},
		{
			name:       "subject is enough without write scope",
			cfg:        enabled,
			headers:    map[string]string{defaultSubjectHeader: "user-1"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing write scope is forbidden",
			cfg:        scoped,
			headers:    map[string]string{defaultSubjectHeader: "user-1", defaultScopesHeader: "quotes:read"},
			wantStatus: http.StatusForbidden,
			wantCode:   dto.ErrorCodeForbidden,
		},
		{
			name:       "write scope passes",
			cfg:        scoped,
			headers:    map[string]string{defaultSubjectHeader: "user-1", defaultScopesHeader: "quotes:read quotes:write"},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			router := gin.New()
			router.POST("/quotes", append(WriteGuards(tt.cfg), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})...)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/quotes", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)

			if tt.wantCode != "" {
				var resp dto.ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, tt.wantCode, resp.Error.Code)
			}
		})
	}
}

func TestRequireScopes_ReusesClaimsFromRequireAuth(t *testing.T) {
	t.Parallel()

	router := gin.New()
	router.Use(RequireAuth(nil), RequireScopes(nil, "quotes:write"))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"subject": GetClaims(c).Subject})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(defaultSubjectHeader, "user-123")
	req.Header.Set(defaultScopesHeader, "quotes:write")

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user-123")
}

func TestRequireAuth_LogsSubject(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(logging.WithContext(c.Request.Context(), logger))
		c.Next()
	}, RequireAuth(nil))
	router.POST("/quotes", func(c *gin.Context) {
		logging.FromContext(c.Request.Context()).Info("quote added")
		c.Status(http.StatusCreated)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/quotes", nil)
	req.Header.Set(defaultSubjectHeader, "user-7")

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, buf.String(), `"subject":"user-7"`)
}

func TestRequireAuth_BlankSubject(t *testing.T) {
	t.Parallel()

	router := gin.New()
	router.Use(RequireAuth(nil))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(defaultSubjectHeader, "   ")

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestParseCommaSeparated(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a", "b"}, parseCommaSeparated(" a ,, b ,"))
	assert.Empty(t, parseCommaSeparated(" , "))
}
