// Package homologation matches local products to the curated official
// catalog and tracks the review of each match.
package homologation

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"sage/internal/core/apperror"
	"sage/internal/domain/catalog"
)

// Score thresholds on the 0-100 confidence scale.
var (
	// AutoApproveScore and above is approved without review.
	AutoApproveScore = decimal.NewFromInt(90)
	// PersistScore must be exceeded for an automatic match to be stored.
	PersistScore = decimal.NewFromInt(1)
	// ReportScore must be exceeded for a match to be reported.
	ReportScore = decimal.NewFromInt(30)
)

// Status of a homologation.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// Final reports whether the status closes the review.
func (s Status) Final() bool { return s == StatusApproved || s == StatusRejected }

// OfficialItem is an entry of the curated reference catalog.
type OfficialItem struct {
	ID          int64     `db:"id" json:"id"`
	SKU         string    `db:"sku" json:"sku"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	Category    string    `db:"category" json:"category"`
	Brand       string    `db:"brand" json:"brand"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

func (o *OfficialItem) Validate(_ context.Context) error {
	if strings.TrimSpace(o.SKU) == "" {
		return apperror.NewValidation("sku is required").WithDetail("field", "sku")
	}
	if strings.TrimSpace(o.Name) == "" {
		return apperror.NewValidation("name is required").WithDetail("field", "name")
	}
	return nil
}

// Homologation links a product to an official item.
type Homologation struct {
	ID             int64            `db:"id" json:"id"`
	ProductID      int64            `db:"product_id" json:"product"`
	OfficialItemID int64            `db:"official_item_id" json:"official_product"`
	Confidence     *decimal.Decimal `db:"confidence_score" json:"confidence_score"`
	IsAutomatic    bool             `db:"is_automatic" json:"is_automatic"`
	Status         Status           `db:"status" json:"status"`
	HomologatedBy  *string          `db:"homologated_by" json:"homologated_by"`
	HomologatedAt  time.Time        `db:"homologated_at" json:"homologated_at"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
}

// ConfigKey is the constant key of the single configuration row.
const ConfigKey = "default"

// Config is the homologation configuration. Exactly one exists.
type Config struct {
	Key         string            `db:"singleton_key" json:"-"`
	Name        string            `db:"name" json:"name"`
	Corporate   string            `db:"corporate" json:"corporate"`
	Product     string            `db:"product" json:"product"`
	Responsible string            `db:"responsible" json:"responsible"`
	Frequency   catalog.Frequency `db:"frequency" json:"frequency"`

	DBHost     string `db:"db_ip" json:"db_ip"`
	DBUser     string `db:"db_user" json:"db_user"`
	DBPassword string `db:"db_password" json:"db_password,omitempty"`

	SFTPHost     string `db:"sftp_ip" json:"sftp_ip"`
	SFTPUser     string `db:"sftp_user" json:"sftp_user"`
	SFTPPassword string `db:"sftp_password" json:"sftp_password,omitempty"`

	Flags

	// ApprovedEmails is a comma-separated address list.
	ApprovedEmails string     `db:"approved_emails" json:"approved_emails"`
	LastReportAt   *time.Time `db:"last_report_at" json:"last_report_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// Flags are the switchable features of the configuration.
type Flags struct {
	NonHomologatedProductsMapping bool `db:"non_homologated_products_mapping" json:"non_homologated_products_mapping"`
	HomologationHistoryMapping    bool `db:"homologation_history_mapping" json:"homologation_history_mapping"`
	StockTableMapping             bool `db:"stock_table_mapping" json:"stock_table_mapping"`
	EmailConfiguration            bool `db:"email_configuration" json:"email_configuration"`
	AlertConfiguration            bool `db:"alert_configuration" json:"alert_configuration"`
}

// Recipients splits ApprovedEmails.
func (c *Config) Recipients() []string {
	if c == nil {
		return nil
	}
	var out []string
	for _, e := range strings.Split(c.ApprovedEmails, ",") {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}

func (c *Config) Validate(_ context.Context) error {
	if c.Frequency != "" && !c.Frequency.Valid() {
		return apperror.NewValidation("invalid frequency").WithDetail("field", "frequency")
	}
	for _, e := range c.Recipients() {
		if _, err := mail.ParseAddress(e); err != nil {
			return apperror.NewValidation("approved_emails contains an invalid address").
				WithDetail("field", "approved_emails").WithDetail("value", e)
		}
	}
	return nil
}

// Match is one candidate found by the matcher.
type Match struct {
	Item       *OfficialItem   `json:"official_product"`
	Confidence decimal.Decimal `json:"confidence_score"`
}
