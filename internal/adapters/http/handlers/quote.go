package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-keeper/internal/app"
	"github.com/jsamuelsen/quote-keeper/internal/domain"
	"github.com/jsamuelsen/quote-keeper/internal/platform/logging"
	"github.com/jsamuelsen/quote-keeper/internal/ports"
)

// ExportFilename is the attachment name used by the export endpoint.
const ExportFilename = "quotes.json"

// QuoteResponse is the HTTP representation of a quote.
type QuoteResponse struct {
	Text     string `json:"text"`
	Category string `json:"category"`
}

// ToQuoteResponse converts a domain quote to its HTTP representation.
func ToQuoteResponse(q domain.Quote) QuoteResponse {
	return QuoteResponse{Text: q.Text, Category: q.Category}
}

func toQuoteResponses(quotes domain.QuoteCollection) []QuoteResponse {
	out := make([]QuoteResponse, len(quotes))
	for i, q := range quotes {
		out[i] = ToQuoteResponse(q)
	}

	return out
}

// ListQuotesRequest holds the query parameters of the list endpoint.
type ListQuotesRequest struct {
	// Category filters the list. When absent the saved preference applies.
	Category string `form:"category" json:"category"`

	dto.PaginationRequest
}

// AddQuoteRequest is the body of the add endpoint.
type AddQuoteRequest struct {
	Text     string `json:"text"     validate:"required,notblank,max=1000"`
	Category string `json:"category" validate:"required,notblank,max=100"`
}

// AddQuoteResponse reports the added quote and anything that did not complete.
type AddQuoteResponse struct {
	Quote    QuoteResponse `json:"quote"`
	Warnings []string      `json:"warnings,omitempty"`
}

// ImportResponse reports how many quotes an import appended.
type ImportResponse struct {
	Imported int      `json:"imported"`
	Warnings []string `json:"warnings,omitempty"`
}

// Warnings shown to clients for partially completed writes.
const (
	WarningNotPersisted = "quote kept in memory only, saving to storage failed"
	WarningNotPublished = "quote saved locally, submitting it to the server failed"
)

// QuoteHandler handles the /quotes endpoints.
type QuoteHandler struct {
	service *app.QuoteService
}

// NewQuoteHandler creates a new quote handler.
func NewQuoteHandler(service *app.QuoteService) *QuoteHandler {
	return &QuoteHandler{service: service}
}

// List handles GET /quotes.
func (h *QuoteHandler) List(c *gin.Context) {
	var req ListQuotesRequest
	if err := dto.BindQueryAndValidate(c, &req); err != nil {
		dto.HandleBindError(c, err)
		return
	}

	ctx := c.Request.Context()

	category := req.Category
	if category == "" {
		category = h.selectedCategory(c)
	}

	page, err := dto.Paginate(toQuoteResponses(h.service.ListQuotes(ctx, category)), &req.PaginationRequest)
	if err != nil {
		dto.AbortWithErrorCode(c, dto.ErrorCodeBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusOK, page)
}

// Random handles GET /quotes/random. The quote is remembered as the session's
// last quote.
func (h *QuoteHandler) Random(c *gin.Context) {
	category, ok := c.GetQuery("category")
	if !ok {
		category = h.selectedCategory(c)
	}

	ctx := c.Request.Context()

	q, err := h.service.RandomQuote(ctx, ports.SessionID(ctx), category)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, ToQuoteResponse(q))
}

// Last handles GET /quotes/last.
func (h *QuoteHandler) Last(c *gin.Context) {
	ctx := c.Request.Context()

	q, err := h.service.LastQuote(ctx, ports.SessionID(ctx))
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, ToQuoteResponse(q))
}

// Add handles POST /quotes. A quote that was added but not persisted or not
// published is still a 201, with warnings.
func (h *QuoteHandler) Add(c *gin.Context) {
	var req AddQuoteRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.HandleBindError(c, err)
		return
	}

	result, err := h.service.AddQuote(c.Request.Context(), req.Text, req.Category)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	resp := AddQuoteResponse{Quote: ToQuoteResponse(result.Quote)}

	if result.StorageErr != nil {
		resp.Warnings = append(resp.Warnings, WarningNotPersisted)
	}

	if result.RemoteErr != nil {
		resp.Warnings = append(resp.Warnings, WarningNotPublished)
	}

	c.JSON(http.StatusCreated, resp)
}

// Export handles GET /quotes/export as a file download.
func (h *QuoteHandler) Export(c *gin.Context) {
	data, err := h.service.Export(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+ExportFilename+`"`)
	c.Data(http.StatusOK, "application/json", data)
}

// Import handles POST /quotes/import. The body is a JSON array of quotes.
func (h *QuoteHandler) Import(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			dto.AbortWithErrorCode(c, dto.ErrorCodeBadRequest, "import payload too large")
			return
		}

		dto.AbortWithErrorCode(c, dto.ErrorCodeBadRequest, "reading request body failed")

		return
	}

	n, err := h.service.Import(c.Request.Context(), payload)
	if err != nil && !domain.IsStorage(err) {
		dto.HandleError(c, err)
		return
	}

	resp := ImportResponse{Imported: n}
	if err != nil {
		resp.Warnings = []string{WarningNotPersisted}
	}

	c.JSON(http.StatusOK, resp)
}

// selectedCategory returns the saved filter, or all quotes when it cannot
// be read.
func (h *QuoteHandler) selectedCategory(c *gin.Context) string {
	ctx := c.Request.Context()

	category, err := h.service.SelectedCategory(ctx)
	if err != nil {
		logging.FromContext(ctx).WarnContext(ctx, "reading selected category failed", slog.Any("error", err))

		return domain.CategoryAll
	}

	return category
}

// RegisterRoutes registers the quote routes. Write routes get the write
// middleware, typically authentication.
func (h *QuoteHandler) RegisterRoutes(rg *gin.RouterGroup, write ...gin.HandlerFunc) {
	quotes := rg.Group("/quotes")

	quotes.GET("", h.List)
	quotes.GET("/random", h.Random)
	quotes.GET("/last", h.Last)
	quotes.GET("/export", h.Export)

	writes := quotes.Group("", write...)
	writes.POST("", h.Add)
	writes.POST("/import", h.Import)
}
