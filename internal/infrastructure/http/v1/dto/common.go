// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"sage/internal/domain"
)

// --- Listing ---

// ListQuery holds the common listing parameters.
type ListQuery struct {
	Search  string `form:"search"`
	OrderBy string `form:"order_by"`
	Limit   int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset  int    `form:"offset" binding:"omitempty,min=0"`
}

// ToFilter converts the query to a domain filter. Unset values keep defaults.
func (q ListQuery) ToFilter() domain.ListFilter {
	f := domain.DefaultListFilter()
	f.Search = q.Search
	if q.OrderBy != "" {
		f.OrderBy = q.OrderBy
	}
	if q.Limit > 0 {
		f.Limit = q.Limit
	}
	f.Offset = q.Offset
	return f
}

// --- ID Response ---

// IDResponse for create operations.
type IDResponse struct {
	ID int64 `json:"id"`
}

// --- Success Response ---

// SuccessResponse for operations without data.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// --- Error Response ---

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// RowErrorsResponse reports a partially applied import.
type RowErrorsResponse struct {
	Message string   `json:"message"`
	Created int      `json:"created"`
	Errors  []string `json:"errors"`
}
