package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/http/dto"
	"github.com/jsamuelsen/quote-keeper/internal/app"
)

// CategoriesResponse lists the distinct categories in the collection.
type CategoriesResponse struct {
	Categories []string `json:"categories"`
}

// CategoryPreference is the persisted category filter.
type CategoryPreference struct {
	Category string `json:"category" validate:"required,notblank,max=100"`
}

// PreferencesHandler handles category listing and the saved category filter.
type PreferencesHandler struct {
	service *app.QuoteService
}

// NewPreferencesHandler creates a new preferences handler.
func NewPreferencesHandler(service *app.QuoteService) *PreferencesHandler {
	return &PreferencesHandler{service: service}
}

// Categories handles GET /categories.
func (h *PreferencesHandler) Categories(c *gin.Context) {
	categories := h.service.Categories(c.Request.Context())
	if categories == nil {
		categories = []string{}
	}

	c.JSON(http.StatusOK, CategoriesResponse{Categories: categories})
}

// GetCategory handles GET /preferences/category.
func (h *PreferencesHandler) GetCategory(c *gin.Context) {
	category, err := h.service.SelectedCategory(c.Request.Context())
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, CategoryPreference{Category: category})
}

// SetCategory handles PUT /preferences/category.
func (h *PreferencesHandler) SetCategory(c *gin.Context) {
	var req CategoryPreference
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.HandleBindError(c, err)
		return
	}

	saved, err := h.service.SetSelectedCategory(c.Request.Context(), req.Category)
	if err != nil {
		dto.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, CategoryPreference{Category: saved})
}

// RegisterRoutes registers the category and preference routes.
func (h *PreferencesHandler) RegisterRoutes(rg *gin.RouterGroup, write ...gin.HandlerFunc) {
	rg.GET("/categories", h.Categories)
	rg.GET("/preferences/category", h.GetCategory)

	rg.Group("/preferences", write...).PUT("/category", h.SetCategory)
}
