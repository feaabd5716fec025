package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quote-keeper/internal/adapters/http/dto"
)

func TestPreferencesHandler_Categories(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodGet, "/api/v1/categories", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"Life", "Happiness"}, decode[CategoriesResponse](t, w).Categories)
}

func TestPreferencesHandler_CategoryRoundTrip(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodGet, "/api/v1/preferences/category", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "all", decode[CategoryPreference](t, w).Category)

	w = f.do(http.MethodPut, "/api/v1/preferences/category", `{"category":" Happiness "}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Happiness", decode[CategoryPreference](t, w).Category)

	w = f.do(http.MethodGet, "/api/v1/preferences/category", "")
	assert.Equal(t, "Happiness", decode[CategoryPreference](t, w).Category)

	page := decode[dto.PaginatedResponse[QuoteResponse]](t, f.do(http.MethodGet, "/api/v1/quotes", ""))
	require.Len(t, page.Items, 1, "list applies the saved filter")
	assert.Equal(t, "Happiness", page.Items[0].Category)
}

func TestPreferencesHandler_SetCategoryValidation(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{name: "missing", body: `{}`, wantCode: dto.ErrorCodeValidation},
		{name: "blank", body: `{"category":"  "}`, wantCode: dto.ErrorCodeValidation},
		{name: "malformed", body: `category=Life`, wantCode: dto.ErrorCodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t)

			w := f.do(http.MethodPut, "/api/v1/preferences/category", tt.body)

			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.wantCode, decode[dto.ErrorResponse](t, w).Error.Code)
		})
	}
}
