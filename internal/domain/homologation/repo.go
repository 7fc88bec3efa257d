package homologation

import (
	"context"

	"sage/internal/domain"
)

// ItemFilter narrows official item listings.
type ItemFilter struct {
	domain.ListFilter
	ActiveOnly bool
	Category   string
}

// ItemRepository persists official catalog items.
type ItemRepository interface {
	Create(ctx context.Context, o *OfficialItem) error
	GetByID(ctx context.Context, id int64) (*OfficialItem, error)
	List(ctx context.Context, f ItemFilter) (domain.ListResult[*OfficialItem], error)
	ListActive(ctx context.Context) ([]*OfficialItem, error)
}

// Filter narrows homologation listings.
type Filter struct {
	domain.ListFilter
	ProductID *int64
	Status    Status
}

// StatusCount is one row of the status histogram.
type StatusCount struct {
	Status Status `db:"status" json:"status"`
	Count  int64  `db:"count" json:"count"`
}

// CorporateProgress counts a corporate's catalogs by homologation outcome.
type CorporateProgress struct {
	Corporate   string `db:"corporate"`
	Total       int64  `db:"total"`
	Homologated int64  `db:"homologated"`
	Pending     int64  `db:"pending"`
	Rejected    int64  `db:"rejected"`
}

// Pair is a homologation together with both sides, used for training.
type Pair struct {
	Homologation
	ProductName        string `db:"product_name"`
	ProductDescription string `db:"product_description"`
	ProductDomain      string `db:"product_domain"`
	ItemName           string `db:"item_name"`
	ItemDescription    string `db:"item_description"`
	ItemCategory       string `db:"item_category"`
	ItemBrand          string `db:"item_brand"`
}

// Repository persists homologations.
type Repository interface {
	Create(ctx context.Context, h *Homologation) error
	GetByID(ctx context.Context, id int64) (*Homologation, error)
	Update(ctx context.Context, h *Homologation) error
	List(ctx context.Context, f Filter) (domain.ListResult[*Homologation], error)

	// FindPair returns the homologation of product to item, or NotFound.
	FindPair(ctx context.Context, productID, itemID int64) (*Homologation, error)

	// TrainingPairs returns approved matches and matches scored at or above minScore.
	TrainingPairs(ctx context.Context, minScore float64) ([]Pair, error)

	StatusCounts(ctx context.Context) ([]StatusCount, error)
	CorporateProgress(ctx context.Context) ([]CorporateProgress, error)
}

// ConfigRepository stores the configuration singleton.
type ConfigRepository interface {
	// Get returns NotFound while no configuration was saved.
	Get(ctx context.Context) (*Config, error)
	// Save upserts on the singleton key.
	Save(ctx context.Context, c *Config) error
}
