package catalog

import (
	"context"

	"sage/internal/domain"
)

// Filter narrows catalog listings. Corporate matches case-insensitively by substring.
type Filter struct {
	domain.ListFilter
	ProductID *int64
	Corporate string
	Frequency Frequency
	Mandatory Mandatory
	Status    Status
}

// StatusCount is one row of a status histogram.
type StatusCount struct {
	Status Status `db:"status"`
	Count  int64  `db:"count"`
}

// CorporateCount is one corporate with its catalog total.
type CorporateCount struct {
	Corporate string `db:"corporate"`
	Total     int64  `db:"total"`
}

// Repository persists catalogs.
type Repository interface {
	Create(ctx context.Context, c *Catalog) error
	GetByID(ctx context.Context, id int64) (*Catalog, error)
	Update(ctx context.Context, c *Catalog) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter Filter) (domain.ListResult[*Catalog], error)

	// FirstByProduct returns the oldest catalog of a product.
	FirstByProduct(ctx context.Context, productID int64) (*Catalog, error)

	SetAPIKeyHash(ctx context.Context, id int64, hash string) error

	StatusCounts(ctx context.Context, corporate string) ([]StatusCount, error)
	TopCorporates(ctx context.Context, limit int) ([]CorporateCount, error)
}
