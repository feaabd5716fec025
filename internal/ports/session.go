package ports

import (
	"context"
)

// Session identifies the client session a request belongs to.
// The HTTP adapter creates one per request from the session header.
type Session struct {
	// ID is the opaque session identifier.
	ID string

	// Issued is true when the ID was generated for this request rather than
	// supplied by the client.
	Issued bool
}

type sessionKey struct{}

// SessionKey is used to store/retrieve Session from context.
var SessionKey = sessionKey{}

// WithSession adds the session to the context.
func WithSession(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, SessionKey, session)
}

// GetSession retrieves the session from context, or nil if not present.
func GetSession(ctx context.Context) *Session {
	if session, ok := ctx.Value(SessionKey).(*Session); ok {
		return session
	}

	return nil
}

// SessionID returns the session ID from context, or "" if not present.
func SessionID(ctx context.Context) string {
	if session := GetSession(ctx); session != nil {
		return session.ID
	}

	return ""
}
