package ports

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithSession(t *testing.T) {
	session := &Session{ID: "sess-123", Issued: true}

	ctx := WithSession(context.Background(), session)

	retrieved := GetSession(ctx)
	require.NotNil(t, retrieved)
	assert.Equal(t, "sess-123", retrieved.ID)
	assert.True(t, retrieved.Issued)
	assert.Equal(t, "sess-123", SessionID(ctx))
}

func TestGetSession_NotPresent(t *testing.T) {
	ctx := context.Background()

	assert.Nil(t, GetSession(ctx))
	assert.Empty(t, SessionID(ctx))
}
