package dto

import (
	"time"

	"sage/internal/core/apperror"
	"sage/internal/domain/submission"
)

// ValidateRequest carries rows to check. Either Rows (positional, optionally
// named by Headers) or Records (keyed by field name) is set.
type ValidateRequest struct {
	Headers []string         `json:"headers"`
	Rows    [][]any          `json:"rows"`
	Records []map[string]any `json:"records"`
}

// SaveRowRequest inserts one row keyed by field name.
type SaveRowRequest struct {
	Values map[string]any `json:"values" binding:"required"`
}

// BulkSaveRequest inserts many rows: each is a list in field order or an
// object keyed by field name.
type BulkSaveRequest struct {
	Rows []any `json:"rows" binding:"required"`
}

// SubmissionQuery filters submission listings and the dashboard.
// Dates are YYYY-MM-DD or RFC 3339.
type SubmissionQuery struct {
	ListQuery
	From      string `form:"from"`
	To        string `form:"to"`
	Domain    string `form:"domain"`
	ProductID *int64 `form:"product"`
	UserID    string `form:"user"`
}

func (q SubmissionQuery) ToFilter() (submission.Filter, error) {
	f := submission.Filter{
		ListFilter: q.ListQuery.ToFilter(),
		Domain:     q.Domain,
		ProductID:  q.ProductID,
		UserID:     q.UserID,
	}
	if q.OrderBy == "" {
		f.OrderBy = "-submission_time"
	}
	var err error
	if f.From, err = parseDate("from", q.From, false); err != nil {
		return f, err
	}
	if f.To, err = parseDate("to", q.To, true); err != nil {
		return f, err
	}
	return f, nil
}

// parseDate reads a day or timestamp. A bare day used as an upper bound
// covers the whole day.
func parseDate(name, v string, endOfDay bool) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, apperror.NewValidation("invalid date").WithDetail("field", name).WithDetail("value", v)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
