package middleware

import (
	"cmp"
	"log/slog"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-keeper/internal/platform/config"
	"github.com/jsamuelsen/quote-keeper/internal/platform/logging"
)

const (
	// ContextKeyClaims is the gin context key for storing extracted claims.
	ContextKeyClaims = "claims"

	defaultSubjectHeader = "X-User-ID"
	defaultRolesHeader   = "X-User-Roles"
	defaultScopesHeader  = "X-User-Scopes"
)

// Claims represents user claims extracted from gateway headers.
// The gateway validates the JWT and forwards its claims as headers.
type Claims struct {
	// Subject is the user ID (sub claim).
	Subject string

	// Roles is the list of roles assigned to the user.
	Roles []string

	// Scopes is the list of OAuth2 scopes granted.
	Scopes []string
}

// HasRole checks if the user has the specified role.
func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// HasAllScopes checks if the user has every specified scope.
func (c *Claims) HasAllScopes(scopes ...string) bool {
	for _, scope := range scopes {
		if !slices.Contains(c.Scopes, scope) {
			return false
		}
	}

	return true
}

// claimHeaders names the headers the gateway forwards claims in.
type claimHeaders struct {
	subject string
	roles   string
	scopes  string
}

func headersFor(cfg *config.AuthConfig) claimHeaders {
	h := claimHeaders{
		subject: defaultSubjectHeader,
		roles:   defaultRolesHeader,
		scopes:  defaultScopesHeader,
	}

	if cfg != nil {
		h.subject = cmp.Or(cfg.SubjectHeader, h.subject)
		h.roles = cmp.Or(cfg.RolesHeader, h.roles)
		h.scopes = cmp.Or(cfg.ScopesHeader, h.scopes)
	}

	return h
}

// extract reads roles comma-separated and scopes space-separated, as OAuth2
// sends them.
func (h claimHeaders) extract(c *gin.Context) *Claims {
	claims := &Claims{Subject: strings.TrimSpace(c.GetHeader(h.subject))}

	if roles := c.GetHeader(h.roles); roles != "" {
		claims.Roles = parseCommaSeparated(roles)
	}

	if scopes := c.GetHeader(h.scopes); scopes != "" {
		claims.Scopes = strings.Fields(scopes)
	}

	return claims
}

// ExtractClaims reads the claims headers named by cfg, or the defaults.
func ExtractClaims(c *gin.Context, cfg *config.AuthConfig) *Claims {
	return headersFor(cfg).extract(c)
}

// GetClaims retrieves claims from the gin context.
// Returns nil if claims are not present.
func GetClaims(c *gin.Context) *Claims {
	if claims, exists := c.Get(ContextKeyClaims); exists {
		if cl, ok := claims.(*Claims); ok {
			return cl
		}
	}

	return nil
}

// RequireAuth returns middleware that rejects requests without a subject
// with 401 Unauthorized. Accepted requests log with the subject attached.
func RequireAuth(cfg *config.AuthConfig) gin.HandlerFunc {
	headers := headersFor(cfg)

	return func(c *gin.Context) {
		claims := headers.extract(c)

		if claims.Subject == "" {
			dto.AbortWithErrorCode(c, dto.ErrorCodeUnauthorized, "authentication required")
			return
		}

		ctx := c.Request.Context()
		logger := logging.FromContext(ctx).With(slog.String("subject", claims.Subject))
		c.Request = c.Request.WithContext(logging.WithContext(ctx, logger))

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// RequireScopes returns middleware that requires every listed scope and
// rejects the request with 403 Forbidden otherwise.
func RequireScopes(cfg *config.AuthConfig, scopes ...string) gin.HandlerFunc {
	headers := headersFor(cfg)

	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			claims = headers.extract(c)
			c.Set(ContextKeyClaims, claims)
		}

		if !claims.HasAllScopes(scopes...) {
			dto.AbortWithErrorCode(c, dto.ErrorCodeForbidden,
				"insufficient permissions: scopes ["+strings.Join(scopes, ", ")+"] required")

			return
		}

		c.Next()
	}
}

// WriteGuards returns the middleware protecting write routes: none when auth
// is disabled, otherwise RequireAuth plus the configured write scope.
func WriteGuards(cfg *config.AuthConfig) []gin.HandlerFunc {
	if cfg == nil || !cfg.Enabled {
		return nil
	}

	guards := []gin.HandlerFunc{RequireAuth(cfg)}
	if cfg.WriteScope != "" {
		guards = append(guards, RequireScopes(cfg, cfg.WriteScope))
	}

	return guards
}

// parseCommaSeparated splits a comma-separated string into trimmed values.
func parseCommaSeparated(s string) []string {
	parts := strings.Split(s, ",")

	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
