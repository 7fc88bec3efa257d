package dto

import (
	"github.com/shopspring/decimal"

	"sage/internal/domain/homologation"
)

// ItemRequest creates an official catalog item.
type ItemRequest struct {
	SKU         string `json:"sku" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Brand       string `json:"brand"`
	IsActive    *bool  `json:"is_active"`
}

func (r *ItemRequest) ToEntity() *homologation.OfficialItem {
	o := &homologation.OfficialItem{
		SKU:         r.SKU,
		Name:        r.Name,
		Description: r.Description,
		Category:    r.Category,
		Brand:       r.Brand,
		IsActive:    true,
	}
	if r.IsActive != nil {
		o.IsActive = *r.IsActive
	}
	return o
}

// ItemQuery filters item listings.
type ItemQuery struct {
	ListQuery
	ActiveOnly bool   `form:"active"`
	Category   string `form:"category"`
}

func (q ItemQuery) ToFilter() homologation.ItemFilter {
	f := homologation.ItemFilter{ListFilter: q.ListQuery.ToFilter(), ActiveOnly: q.ActiveOnly, Category: q.Category}
	if q.OrderBy == "" {
		f.OrderBy = "name"
	}
	return f
}

// HomologateRequest links a product to an official item.
type HomologateRequest struct {
	ProductID      int64 `json:"product_id" binding:"required"`
	OfficialItemID int64 `json:"official_product_id" binding:"required"`
}

// ReviewRequest partially updates a homologation.
type ReviewRequest struct {
	Status         *homologation.Status `json:"status"`
	OfficialItemID *int64               `json:"official_product"`
	Confidence     *decimal.Decimal     `json:"confidence_score"`
}

func (r *ReviewRequest) ToInput() homologation.ReviewInput {
	return homologation.ReviewInput{Status: r.Status, OfficialItemID: r.OfficialItemID, Confidence: r.Confidence}
}

// HomologationQuery filters homologation listings.
type HomologationQuery struct {
	ListQuery
	ProductID *int64              `form:"product"`
	Status    homologation.Status `form:"status"`
}

func (q HomologationQuery) ToFilter() homologation.Filter {
	return homologation.Filter{ListFilter: q.ListQuery.ToFilter(), ProductID: q.ProductID, Status: q.Status}
}

// ConfigResponse is the configuration with stored passwords withheld.
type ConfigResponse struct {
	homologation.Config
	HasDBPassword   bool `json:"has_db_password"`
	HasSFTPPassword bool `json:"has_sftp_password"`
}

func NewConfigResponse(c *homologation.Config) ConfigResponse {
	out := ConfigResponse{Config: *c, HasDBPassword: c.DBPassword != "", HasSFTPPassword: c.SFTPPassword != ""}
	out.DBPassword = ""
	out.SFTPPassword = ""
	return out
}

// ImportLinksResponse reports a homologation upload.
type ImportLinksResponse struct {
	Approved int      `json:"approved"`
	Errors   []string `json:"errors"`
}
