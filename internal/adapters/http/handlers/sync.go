package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-keeper/internal/app"
	"github.com/jsamuelsen/quote-keeper/internal/domain"
)

// SyncResponse reports the outcome of a sync.
type SyncResponse struct {
	Policy   string `json:"policy"`
	Received int    `json:"received"`

	// Count is quotes added under the additive policy, or the size of the
	// replacing collection under the authoritative one.
	Count int `json:"count"`

	Total   int    `json:"total"`
	Warning string `json:"warning,omitempty"`
}

// SyncHandler triggers a sync with the remote quote source.
type SyncHandler struct {
	syncer *app.Syncer
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(syncer *app.Syncer) *SyncHandler {
	return &SyncHandler{syncer: syncer}
}

// Sync handles POST /sync. Any failed fetch is a 503, including a server that
// rejects the request or answers with garbage. A merge that could not be
// persisted still returns the report, with a warning.
func (h *SyncHandler) Sync(c *gin.Context) {
	report, err := h.syncer.SyncNow(c.Request.Context())
	if err != nil && !domain.IsStorage(err) {
		dto.HandleError(c, err)
		return
	}

	resp := SyncResponse{
		Policy:   string(report.Policy),
		Received: report.Received,
		Count:    report.Count(),
		Total:    report.Total,
	}

	if err != nil {
		resp.Warning = WarningNotPersisted
	}

	c.JSON(http.StatusOK, resp)
}

// RegisterRoutes registers the sync route.
func (h *SyncHandler) RegisterRoutes(rg *gin.RouterGroup, write ...gin.HandlerFunc) {
	rg.Group("/sync", write...).POST("", h.Sync)
}
