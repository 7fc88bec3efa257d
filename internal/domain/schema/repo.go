package schema

import (
	"context"

	"sage/internal/domain"
)

// ProductFilter narrows product listings.
type ProductFilter struct {
	domain.ListFilter
	Domain        string
	IsHomologated *bool
}

// ProductRepository persists products.
type ProductRepository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id int64) (*Product, error)
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter ProductFilter) (domain.ListResult[*Product], error)

	// SetHomologated flips the is_homologated flag.
	SetHomologated(ctx context.Context, id int64, homologated bool) error
}

// FieldRepository persists product fields.
type FieldRepository interface {
	Create(ctx context.Context, f *Field) error
	GetByID(ctx context.Context, productID, fieldID int64) (*Field, error)
	Update(ctx context.Context, f *Field) error
	Delete(ctx context.Context, productID, fieldID int64) error

	// ListByProduct returns the product's fields in creation order, each with its
	// validation rule attached when one exists.
	ListByProduct(ctx context.Context, productID int64) ([]*Field, error)

	// ExistsByName checks for another field with the same name in the product.
	ExistsByName(ctx context.Context, productID int64, name string, excludeID int64) (bool, error)
}

// RuleRepository persists validation rules.
type RuleRepository interface {
	Create(ctx context.Context, r *ValidationRule) error
	GetByID(ctx context.Context, fieldID, ruleID int64) (*ValidationRule, error)
	GetByField(ctx context.Context, fieldID int64) (*ValidationRule, error)
	Update(ctx context.Context, r *ValidationRule) error
	Delete(ctx context.Context, fieldID, ruleID int64) error
}

// TableInfoRepository persists materialization snapshots.
type TableInfoRepository interface {
	// GetByProduct returns NotFound when the product was never materialized.
	GetByProduct(ctx context.Context, productID int64) (*TableInfo, error)

	// CreateIfAbsent inserts the snapshot unless one exists; it reports whether it inserted.
	CreateIfAbsent(ctx context.Context, info *TableInfo) (bool, error)
}

// UploadedFileRepository appends upload records.
type UploadedFileRepository interface {
	Create(ctx context.Context, f *UploadedFile) error
	ListByCatalog(ctx context.Context, catalogID int64) ([]*UploadedFile, error)
}
