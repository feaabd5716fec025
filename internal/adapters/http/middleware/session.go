package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-keeper/internal/platform/logging"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

const (
	// DefaultSessionHeader is used when no session header is configured.
	DefaultSessionHeader = "X-Session-ID"

	// ContextKeySessionID is the gin context key for the session ID.
	ContextKeySessionID = "session_id"
)

// Session returns middleware that identifies the client session. The ID is
// read from header, or generated when absent, and echoed in the response so
// the client can send it back. The session is attached to the request context
// for the application layer and to the context logger.
func Session(header string) gin.HandlerFunc {
	if header == "" {
		header = DefaultSessionHeader
	}

	return createIDMiddleware(idMiddlewareConfig{
		headerName: header,
		contextKey: ContextKeySessionID,
		contextEnricher: func(ctx context.Context, id string, generated bool) context.Context {
			ctx = ports.WithSession(ctx, &ports.Session{ID: id, Issued: generated})
			return logging.WithSessionID(ctx, id)
		},
	})
}

// GetSessionID extracts the session ID from the gin.Context.
// Returns empty string if not set.
func GetSessionID(c *gin.Context) string {
	return getIDFromContext(c, ContextKeySessionID)
}
