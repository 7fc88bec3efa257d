package dto

import (
	"time"

	"sage/internal/domain/catalog"
)

// CatalogRequest is the body of catalog create and update.
type CatalogRequest struct {
	Name             string            `json:"name" binding:"required"`
	Tags             []string          `json:"tags"`
	Corporate        string            `json:"corporate" binding:"required"`
	ResponsibleUser  *string           `json:"responsible_user"`
	Menu             string            `json:"menu"`
	Status           catalog.Status    `json:"status"`
	ProductID        int64             `json:"product" binding:"required"`
	Mandatory        catalog.Mandatory `json:"mandatory"`
	Frequency        catalog.Frequency `json:"frequency"`
	Deadline         *time.Time        `json:"deadline"`
	SubmissionEmail  string            `json:"submission_email" binding:"required"`
	AuthorizedEmails []string          `json:"authorized_emails"`
	SFTPFolder       string            `json:"sftp_folder"`

	// WithAPIKey issues a machine-submission key on create.
	WithAPIKey bool `json:"with_api_key"`
}

func (r *CatalogRequest) ToEntity() *catalog.Catalog {
	c := &catalog.Catalog{}
	r.ApplyTo(c)
	c.ProductID = r.ProductID
	return c
}

// ApplyTo copies the mutable fields onto c. The product never changes.
func (r *CatalogRequest) ApplyTo(c *catalog.Catalog) {
	c.Name = r.Name
	c.Tags = r.Tags
	c.Corporate = r.Corporate
	c.ResponsibleUser = r.ResponsibleUser
	c.Menu = r.Menu
	c.Status = r.Status
	c.Mandatory = r.Mandatory
	c.Frequency = r.Frequency
	c.Deadline = r.Deadline
	c.SubmissionEmail = r.SubmissionEmail
	c.AuthorizedEmails = r.AuthorizedEmails
	c.SFTPFolder = r.SFTPFolder
}

// CatalogQuery filters catalog listings.
type CatalogQuery struct {
	ListQuery
	ProductID *int64            `form:"product"`
	Corporate string            `form:"corporate"`
	Frequency catalog.Frequency `form:"frequency"`
	Mandatory catalog.Mandatory `form:"mandatory"`
	Status    catalog.Status    `form:"status"`
}

func (q CatalogQuery) ToFilter() catalog.Filter {
	return catalog.Filter{
		ListFilter: q.ListQuery.ToFilter(),
		ProductID:  q.ProductID,
		Corporate:  q.Corporate,
		Frequency:  q.Frequency,
		Mandatory:  q.Mandatory,
		Status:     q.Status,
	}
}

// APIKeyResponse returns a freshly issued key. It is never shown again.
type APIKeyResponse struct {
	CatalogID int64  `json:"catalog"`
	APIKey    string `json:"api_key"`
}
