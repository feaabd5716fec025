package dto

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type quoteBody struct {
	Text     string `json:"text"     validate:"required,notblank,max=20"`
	Category string `json:"category" validate:"required,notblank,max=10"`
}

type listQuery struct {
	Category string `form:"category"`
	Sort     string `form:"sort" validate:"omitempty,oneof=asc desc"`

	PaginationRequest
}

func TestValidator_IsShared(t *testing.T) {
	assert.Same(t, Validator(), Validator())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		body        quoteBody
		wantDetails map[string]string
	}{
		{
			name: "valid",
			body: quoteBody{Text: "Be yourself.", Category: "Life"},
		},
		{
			name:        "missing text",
			body:        quoteBody{Category: "Life"},
			wantDetails: map[string]string{"text": "this field is required"},
		},
		{
			name:        "blank category",
			body:        quoteBody{Text: "Be yourself.", Category: "   "},
			wantDetails: map[string]string{"category": "must not be blank"},
		},
		{
			name: "too long",
			body: quoteBody{Text: strings.Repeat("x", 21), Category: strings.Repeat("y", 11)},
			wantDetails: map[string]string{
				"text":     "must be at most 20 characters",
				"category": "must be at most 10 characters",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.body)

			if tt.wantDetails == nil {
				assert.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, ErrValidation)
			assert.True(t, IsValidationError(err))
			assert.Equal(t, tt.wantDetails, ValidationErrors(err))
		})
	}
}

func TestValidate_QueryFieldNames(t *testing.T) {
	err := Validate(&listQuery{Sort: "random", PaginationRequest: PaginationRequest{Limit: 500}})

	require.Error(t, err)
	assert.Equal(t, map[string]string{
		"sort":  "must be one of: asc desc",
		"limit": "must be less than or equal to 100",
	}, ValidationErrors(err))
}

func TestValidationErrors_NotAValidationError(t *testing.T) {
	assert.Empty(t, ValidationErrors(ErrBinding))
	assert.False(t, IsValidationError(ErrBinding))
}

func TestBindAndValidate(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		wantBinding    bool
		wantValidation bool
	}{
		{name: "valid", body: `{"text":"Ship it.","category":"Work"}`},
		{name: "malformed", body: `{"text":`, wantBinding: true},
		{name: "wrong type", body: `{"text":5,"category":"Work"}`, wantBinding: true},
		{name: "blank text", body: `{"text":" ","category":"Work"}`, wantValidation: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newContext(httptest.NewRequest(http.MethodPost, "/api/v1/quotes", strings.NewReader(tt.body)))
			c.Request.Header.Set("Content-Type", "application/json")

			var body quoteBody
			err := BindAndValidate(c, &body)

			switch {
			case tt.wantBinding:
				assert.ErrorIs(t, err, ErrBinding)
			case tt.wantValidation:
				assert.ErrorIs(t, err, ErrValidation)
			default:
				require.NoError(t, err)
				assert.Equal(t, quoteBody{Text: "Ship it.", Category: "Work"}, body)
			}
		})
	}
}

func TestBindQueryAndValidate(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantErr error
		want    listQuery
	}{
		{
			name:  "all parameters",
			query: "?category=Life&sort=asc&limit=5&cursor=abc",
			want:  listQuery{Category: "Life", Sort: "asc", PaginationRequest: PaginationRequest{Limit: 5, Cursor: "abc"}},
		},
		{name: "no parameters", query: ""},
		{name: "limit not a number", query: "?limit=abc", wantErr: ErrBinding},
		{name: "zero limit is unset", query: "?limit=0"},
		{name: "limit too large", query: "?limit=101", wantErr: ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newContext(httptest.NewRequest(http.MethodGet, "/api/v1/quotes"+tt.query, nil))

			var q listQuery
			err := BindQueryAndValidate(c, &q)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, q)
		})
	}
}
