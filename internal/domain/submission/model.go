// Package submission keeps the audit trail of accepted bulk saves and the
// dashboard built on it.
package submission

import (
	"encoding/json"
	"time"

	"sage/internal/domain"
)

// Submission records one successful bulk save with the payload exactly as received.
type Submission struct {
	ID             int64           `db:"id" json:"id"`
	CatalogID      *int64          `db:"catalog_id" json:"catalog"`
	ProductID      int64           `db:"product_id" json:"product"`
	Domain         string          `db:"domain" json:"domain"`
	SubmittedBy    *string         `db:"submitted_by" json:"submitted_by"`
	SubmissionTime time.Time       `db:"submission_time" json:"submission_time"`
	RowCount       int64           `db:"row_count" json:"row_count"`
	SubmittedData  json.RawMessage `db:"-" json:"submitted_data,omitempty"`
}

// Filter narrows submission listings and the dashboard.
type Filter struct {
	domain.ListFilter
	From      *time.Time
	To        *time.Time
	Domain    string
	ProductID *int64
	UserID    string
}

// Entry is a dashboard line.
type Entry struct {
	ID             int64     `db:"id" json:"id"`
	SubmissionTime time.Time `db:"submission_time" json:"-"`
	Domain         string    `db:"domain" json:"domain"`
	SubmittedBy    *string   `db:"submitted_by" json:"user"`
	CatalogStatus  *string   `db:"catalog_status" json:"status,omitempty"`

	// Date is SubmissionTime rendered as dd/mm/yyyy.
	Date string `db:"-" json:"date"`
}
