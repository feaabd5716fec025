// Package acl translates between remote service payloads and domain types.
// Remote DTOs, status codes, and transport errors stay inside this package;
// callers only see domain values and domain errors.
package acl

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/clients"
	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/platform/logging"
)

const (
	postsPath = "/posts"

	// maxLoggedResponse caps how much of a publish response is logged.
	maxLoggedResponse = 1 << 10

	// DefaultMaxItems is the number of posts taken from a fetch when unset.
	DefaultMaxItems = 5

	// DefaultCategory labels fetched quotes when no category is configured.
	DefaultCategory = "Server"

	// defaultUserID is sent with every published post.
	defaultUserID = 1
)

// PostsClientConfig contains configuration for the posts client.
type PostsClientConfig struct {
	// Client is the HTTP client. Its BaseURL points at the posts API. Required.
	Client *clients.Client

	// MaxItems limits how many posts a fetch turns into quotes.
	MaxItems int

	// Category labels every fetched quote.
	Category string

	Logger *slog.Logger
}

// PostsClient treats a JSONPlaceholder-style /posts resource as a quote
// source and sink. It implements ports.RemoteQuoteSource,
// ports.QuotePublisher, and ports.HealthChecker.
type PostsClient struct {
	BaseAdapter

	maxItems int
	category string
	logger   *slog.Logger
}

// NewPostsClient creates a posts client. Panics if Client is nil.
func NewPostsClient(cfg PostsClientConfig) *PostsClient {
	if cfg.Client == nil {
		panic("acl: PostsClientConfig.Client is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxItems := cfg.MaxItems
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}

	category := strings.TrimSpace(cfg.Category)
	if category == "" {
		category = DefaultCategory
	}

	return &PostsClient{
		BaseAdapter: NewBaseAdapter(cfg.Client, cfg.Client.ServiceName()),
		maxItems:    maxItems,
		category:    category,
		logger:      logger,
	}
}

// post is the remote DTO. It never leaves this package.
type post struct {
	ID     int    `json:"id,omitempty"`
	UserID int    `json:"userId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// FetchQuotes reads the posts resource and maps the first MaxItems posts to
// quotes. Posts that yield no text are passed through empty; the caller
// decides what to drop.
func (c *PostsClient) FetchQuotes(ctx context.Context) (domain.QuoteCollection, error) {
	c.logger.Log(ctx, logging.LevelTrace, "starting request", slog.String("path", postsPath))

	body, err := c.Get(ctx, postsPath, "fetch quotes", "posts")
	if err != nil {
		return nil, c.fetchFailure(err)
	}

	posts, err := DecodeResponse[[]post](body)
	if err != nil {
		return nil, c.fetchFailure(err)
	}

	if len(posts) > c.maxItems {
		posts = posts[:c.maxItems]
	}

	quotes := TranslateSlice[post, domain.Quote](posts, c.toQuote)

	c.logger.DebugContext(ctx, "fetched remote quotes",
		slog.Int("count", len(quotes)),
	)

	return domain.QuoteCollection(quotes), nil
}

// fetchFailure reports a rejected or undecodable fetch as a NetworkError that
// keeps the mapped cause.
func (c *PostsClient) fetchFailure(err error) error {
	if domain.IsNetwork(err) {
		return err
	}

	return domain.WrapNetworkError(c.ServiceName(), "fetch quotes: "+err.Error(), err)
}

// toQuote maps a post to a quote: the title is the text, falling back to the
// body, and every quote gets the configured category.
func (c *PostsClient) toQuote(p *post) domain.Quote {
	text := strings.TrimSpace(p.Title)
	if text == "" {
		text = strings.TrimSpace(p.Body)
	}

	return domain.Quote{Text: text, Category: c.category}
}

// fromQuote maps a quote to the post the remote expects on submit.
func fromQuote(q domain.Quote) post {
	return post{
		UserID: defaultUserID,
		Title:  q.Category,
		Body:   q.Text,
	}
}

// PublishQuote submits a quote as a new post. The remote's answer is logged
// and otherwise ignored.
func (c *PostsClient) PublishQuote(ctx context.Context, q domain.Quote) error {
	body, err := c.PostJSON(ctx, postsPath, fromQuote(q), "publish quote", "posts")
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(body, maxLoggedResponse))
	if err != nil {
		c.logger.DebugContext(ctx, "reading publish response failed", slog.Any("error", err))

		return nil
	}

	c.logger.InfoContext(ctx, "quote published to server",
		slog.String("category", q.Category),
		slog.String("response", string(raw)),
	)

	return nil
}

// Name implements ports.HealthChecker.
func (c *PostsClient) Name() string {
	return c.ServiceName()
}

// Check implements ports.HealthChecker by reading a single post.
func (c *PostsClient) Check(ctx context.Context) error {
	body, err := c.Get(ctx, postsPath+"/1", "health check", "post")
	if err != nil {
		return err
	}

	return body.Close()
}
