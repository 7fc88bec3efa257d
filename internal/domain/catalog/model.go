// Package catalog manages submission campaigns. Creating a catalog is what
// materializes its product's table.
package catalog

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"sage/internal/core/apperror"
)

// Status of a catalog.
type Status string

const (
	StatusActive   Status = "Active"
	StatusDelayed  Status = "Delayed"
	StatusPending  Status = "Pending"
	StatusRejected Status = "Rejected"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusActive, StatusDelayed, StatusPending, StatusRejected}

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusDelayed, StatusPending, StatusRejected:
		return true
	}
	return false
}

// Frequency is a submission or reporting cadence.
type Frequency string

const (
	FrequencyDaily   Frequency = "Daily"
	FrequencyWeekly  Frequency = "Weekly"
	FrequencyMonthly Frequency = "Monthly"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// Interval is the wall-clock period of the cadence. Monthly is 30 days.
func (f Frequency) Interval() time.Duration {
	switch f {
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	case FrequencyMonthly:
		return 30 * 24 * time.Hour
	}
	return 24 * time.Hour
}

// Mandatory marks whether submissions are required.
type Mandatory string

const (
	MandatoryRequired Mandatory = "Is Mandatory"
	MandatoryOptional Mandatory = "Not Mandatory"
)

// Catalog wraps a product with scheduling and submission settings.
type Catalog struct {
	ID               int64      `db:"id" json:"id"`
	Name             string     `db:"name" json:"name"`
	Tags             []string   `db:"tags" json:"tags"`
	Corporate        string     `db:"corporate" json:"corporate"`
	ResponsibleUser  *string    `db:"responsible_user" json:"responsible_user"`
	Menu             string     `db:"menu" json:"menu"`
	Status           Status     `db:"status" json:"status"`
	ProductID        int64      `db:"product_id" json:"product"`
	Mandatory        Mandatory  `db:"mandatory" json:"mandatory"`
	Frequency        Frequency  `db:"frequency" json:"frequency"`
	Deadline         *time.Time `db:"deadline" json:"deadline"`
	APIKeyHash       *string    `db:"api_key_hash" json:"-"`
	SubmissionEmail  string     `db:"submission_email" json:"submission_email"`
	AuthorizedEmails []string   `db:"authorized_emails" json:"authorized_emails"`
	SFTPFolder       string     `db:"sftp_folder" json:"sftp_folder"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// ApplyDefaults fills unset enum fields.
func (c *Catalog) ApplyDefaults() {
	if c.Status == "" {
		c.Status = StatusPending
	}
	if c.Mandatory == "" {
		c.Mandatory = MandatoryRequired
	}
	if c.Frequency == "" {
		c.Frequency = FrequencyDaily
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
	if c.AuthorizedEmails == nil {
		c.AuthorizedEmails = []string{}
	}
}

func (c *Catalog) Validate(_ context.Context) error {
	if strings.TrimSpace(c.Name) == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	if strings.TrimSpace(c.Corporate) == "" {
		return apperror.NewValidation("corporate is required").WithDetail("field", "corporate")
	}
	if c.ProductID == 0 {
		return apperror.NewValidation("product is required").WithDetail("field", "product")
	}
	if !c.Status.Valid() {
		return apperror.NewValidation("invalid status").WithDetail("field", "status").WithDetail("value", c.Status)
	}
	if !c.Frequency.Valid() {
		return apperror.NewValidation("invalid frequency").WithDetail("field", "frequency").WithDetail("value", c.Frequency)
	}
	if c.Mandatory != MandatoryRequired && c.Mandatory != MandatoryOptional {
		return apperror.NewValidation("invalid mandatory value").WithDetail("field", "mandatory")
	}
	if _, err := mail.ParseAddress(c.SubmissionEmail); err != nil {
		return apperror.NewValidation("submission_email is not a valid address").WithDetail("field", "submission_email")
	}
	for _, e := range c.AuthorizedEmails {
		if _, err := mail.ParseAddress(e); err != nil {
			return apperror.NewValidation("authorized_emails contains an invalid address").
				WithDetail("field", "authorized_emails").WithDetail("value", e)
		}
	}
	return nil
}
