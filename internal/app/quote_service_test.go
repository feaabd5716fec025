package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/storage/memory"
	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/mocks"
)

// discardLogger returns a logger that discards all output.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type serviceFixture struct {
	svc       *QuoteService
	store     *QuoteStore
	kv        *memory.Store
	sessions  *memory.SessionStore
	publisher *mocks.MockQuotePublisher
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	kv := memory.NewStore()
	sessions := memory.NewSessionStore(time.Hour)
	publisher := mocks.NewMockQuotePublisher(t)

	store := NewQuoteStore(context.Background(), QuoteStoreConfig{Store: kv, Logger: discardLogger()})

	svc := NewQuoteService(QuoteServiceConfig{
		Store:       store,
		Preferences: kv,
		Sessions:    sessions,
		Publisher:   publisher,
		Logger:      discardLogger(),
	})

	return &serviceFixture{svc: svc, store: store, kv: kv, sessions: sessions, publisher: publisher}
}

func TestNewQuoteService_PanicsWithoutDependencies(t *testing.T) {
	store := NewQuoteStore(context.Background(), QuoteStoreConfig{Store: memory.NewStore()})

	tests := []struct {
		name string
		cfg  QuoteServiceConfig
	}{
		{"missing store", QuoteServiceConfig{Preferences: memory.NewStore(), Sessions: memory.NewSessionStore(time.Minute)}},
		{"missing preferences", QuoteServiceConfig{Store: store, Sessions: memory.NewSessionStore(time.Minute)}},
		{"missing sessions", QuoteServiceConfig{Store: store, Preferences: memory.NewStore()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Panics(t, func() { NewQuoteService(tt.cfg) })
		})
	}
}

func TestNewQuoteService_DefaultsLogger(t *testing.T) {
	kv := memory.NewStore()

	svc := NewQuoteService(QuoteServiceConfig{
		Store:       NewQuoteStore(context.Background(), QuoteStoreConfig{Store: kv}),
		Preferences: kv,
		Sessions:    memory.NewSessionStore(time.Minute),
		Logger:      nil, // Should default to slog.Default()
	})

	require.NotNil(t, svc)
}

func TestQuoteService_AddQuote(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		category      string
		failWrites    bool
		setupMock     func(*mocks.MockQuotePublisher)
		errCheck      func(error) bool
		wantStorage   bool
		wantRemoteErr bool
	}{
		{
			name:     "persisted and published",
			text:     "Ship it.",
			category: "Work",
			setupMock: func(p *mocks.MockQuotePublisher) {
				p.EXPECT().PublishQuote(mock.Anything, domain.Quote{Text: "Ship it.", Category: "Work"}).Return(nil)
			},
		},
		{
			name:     "remote failure is reported, not fatal",
			text:     "Ship it.",
			category: "Work",
			setupMock: func(p *mocks.MockQuotePublisher) {
				p.EXPECT().PublishQuote(mock.Anything, mock.Anything).
					Return(domain.NewNetworkError("remote-quotes", "timeout"))
			},
			wantRemoteErr: true,
		},
		{
			name:       "storage failure is reported, not fatal",
			text:       "Ship it.",
			category:   "Work",
			failWrites: true,
			setupMock: func(p *mocks.MockQuotePublisher) {
				p.EXPECT().PublishQuote(mock.Anything, mock.Anything).Return(nil)
			},
			wantStorage: true,
		},
		{
			name:      "validation error publishes nothing",
			text:      "",
			category:  "Work",
			setupMock: func(p *mocks.MockQuotePublisher) {},
			errCheck:  domain.IsValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t)
			tt.setupMock(f.publisher)

			if tt.failWrites {
				f.kv.FailWrites(errors.New("quota exceeded"))
			}

			result, err := f.svc.AddQuote(context.Background(), tt.text, tt.category)

			if tt.errCheck != nil {
				require.Error(t, err)
				assert.True(t, tt.errCheck(err), "unexpected error type: %v", err)
				assert.Nil(t, result)
				assert.Equal(t, 2, f.store.Len())

				return
			}

			require.NoError(t, err)
			require.NotNil(t, result)
			assert.Equal(t, tt.text, result.Quote.Text)
			assert.Equal(t, 3, f.store.Len())
			assert.Equal(t, tt.wantStorage, result.StorageErr != nil)
			assert.Equal(t, tt.wantRemoteErr, result.RemoteErr != nil)
			assert.Equal(t, tt.wantStorage || tt.wantRemoteErr, result.Degraded())
		})
	}
}

func TestQuoteService_AddQuoteWithoutPublisher(t *testing.T) {
	kv := memory.NewStore()
	svc := NewQuoteService(QuoteServiceConfig{
		Store:       NewQuoteStore(context.Background(), QuoteStoreConfig{Store: kv, Logger: discardLogger()}),
		Preferences: kv,
		Sessions:    memory.NewSessionStore(time.Minute),
		Logger:      discardLogger(),
	})

	result, err := svc.AddQuote(context.Background(), "Local only", "Life")

	require.NoError(t, err)
	assert.False(t, result.Degraded())
}

func TestQuoteService_RandomQuoteRemembersLastQuote(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.LastQuote(ctx, "sess-1")
	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))

	q, err := f.svc.RandomQuote(ctx, "sess-1", "Life")
	require.NoError(t, err)
	assert.Equal(t, "Life", q.Category)

	last, err := f.svc.LastQuote(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, q, last)

	_, err = f.svc.LastQuote(ctx, "sess-2")
	assert.True(t, domain.IsNotFound(err), "last quote is scoped to the session")
}

func TestQuoteService_RandomQuoteNoMatch(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.RandomQuote(context.Background(), "sess-1", "Server")

	require.Error(t, err)
	assert.True(t, domain.IsNotFound(err))
	assert.Equal(t, 0, f.sessions.Len())
}

func TestQuoteService_RandomQuoteSessionFailureIsLogged(t *testing.T) {
	kv := memory.NewStore()
	sessions := mocks.NewMockSessionStore(t)
	sessions.EXPECT().Set(mock.Anything, "sess-1", KeyLastQuote, mock.Anything).
		Return(domain.NewStorageError("write", KeyLastQuote, errors.New("full")))

	svc := NewQuoteService(QuoteServiceConfig{
		Store:       NewQuoteStore(context.Background(), QuoteStoreConfig{Store: kv, Logger: discardLogger()}),
		Preferences: kv,
		Sessions:    sessions,
		Logger:      discardLogger(),
	})

	q, err := svc.RandomQuote(context.Background(), "sess-1", "")

	require.NoError(t, err)
	assert.NotEmpty(t, q.Text)
}

func TestQuoteService_SelectedCategory(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	selected, err := f.svc.SelectedCategory(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryAll, selected)

	saved, err := f.svc.SetSelectedCategory(ctx, " Life ")
	require.NoError(t, err)
	assert.Equal(t, "Life", saved)

	// A fresh service over the same storage sees the persisted filter.
	restarted := NewQuoteService(QuoteServiceConfig{
		Store:       NewQuoteStore(ctx, QuoteStoreConfig{Store: f.kv, Logger: discardLogger()}),
		Preferences: f.kv,
		Sessions:    memory.NewSessionStore(time.Minute),
		Logger:      discardLogger(),
	})

	selected, err = restarted.SelectedCategory(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Life", selected)
}

func TestQuoteService_SetSelectedCategoryValidation(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.svc.SetSelectedCategory(context.Background(), "  ")

	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}

func TestQuoteService_SelectedCategoryStorageError(t *testing.T) {
	prefs := mocks.NewMockKeyValueStore(t)
	prefs.EXPECT().Get(mock.Anything, KeySelectedCategory).
		Return(nil, domain.NewStorageError("read", KeySelectedCategory, errors.New("io")))

	svc := NewQuoteService(QuoteServiceConfig{
		Store:       NewQuoteStore(context.Background(), QuoteStoreConfig{Store: memory.NewStore(), Logger: discardLogger()}),
		Preferences: prefs,
		Sessions:    memory.NewSessionStore(time.Minute),
		Logger:      discardLogger(),
	})

	_, err := svc.SelectedCategory(context.Background())
	assert.True(t, domain.IsStorage(err))
}

func TestQuoteService_ImportExport(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	n, err := f.svc.Import(ctx, []byte(`[{"text":"Imported","category":"File"}]`))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	exported, err := f.svc.Export(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(exported), `"text":"Imported"`)

	_, err = f.svc.Import(ctx, []byte(`{}`))
	require.Error(t, err)
	assert.True(t, domain.IsFormat(err))
	assert.Equal(t, 3, f.store.Len())
}

func TestQuoteService_ListAndCategories(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	assert.Len(t, f.svc.ListQuotes(ctx, ""), 2)
	assert.Len(t, f.svc.ListQuotes(ctx, "Happiness"), 1)
	assert.Equal(t, []string{"Life", "Happiness"}, f.svc.Categories(ctx))
}
