// Package catalog_repo stores catalogs, their submission audit trail and
// user alerts in PostgreSQL.
package catalog_repo

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"

	"sage/internal/domain"
	"sage/internal/domain/catalog"
	"sage/internal/infrastructure/storage/postgres"
)

const catalogsTable = "catalogs"

// CatalogRepo implements catalog.Repository.
type CatalogRepo struct {
	*postgres.Table[catalog.Catalog]
}

var _ catalog.Repository = (*CatalogRepo)(nil)

func NewCatalogRepo(db postgres.QuerierSource) *CatalogRepo {
	return &CatalogRepo{postgres.NewTable[catalog.Catalog](db, catalogsTable, "catalog", "name", "corporate", "menu")}
}

func (r *CatalogRepo) Create(ctx context.Context, c *catalog.Catalog) error {
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	nonNilSlices(c)
	id, err := r.Insert(ctx, c)
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

// Update never touches the product link or the API key hash.
func (r *CatalogRepo) Update(ctx context.Context, c *catalog.Catalog) error {
	c.UpdatedAt = time.Now().UTC()
	nonNilSlices(c)
	return r.Table.Update(ctx, c.ID, c, "product_id", "api_key_hash")
}

// text[] columns are NOT NULL.
func nonNilSlices(c *catalog.Catalog) {
	if c.Tags == nil {
		c.Tags = []string{}
	}
	if c.AuthorizedEmails == nil {
		c.AuthorizedEmails = []string{}
	}
}

func (r *CatalogRepo) Delete(ctx context.Context, id int64) error {
	return r.Table.Delete(ctx, squirrel.Eq{"id": id}, id)
}

func (r *CatalogRepo) List(ctx context.Context, f catalog.Filter) (domain.ListResult[*catalog.Catalog], error) {
	return r.Page(ctx, catalogQuery(r.Select(), f), f.ListFilter)
}

func catalogQuery(q squirrel.SelectBuilder, f catalog.Filter) squirrel.SelectBuilder {
	if f.ProductID != nil {
		q = q.Where(squirrel.Eq{catalogsTable + ".product_id": *f.ProductID})
	}
	if f.Corporate != "" {
		q = q.Where(squirrel.ILike{catalogsTable + ".corporate": "%" + f.Corporate + "%"})
	}
	if f.Frequency != "" {
		q = q.Where(squirrel.Eq{catalogsTable + ".frequency": f.Frequency})
	}
	if f.Mandatory != "" {
		q = q.Where(squirrel.Eq{catalogsTable + ".mandatory": f.Mandatory})
	}
	if f.Status != "" {
		q = q.Where(squirrel.Eq{catalogsTable + ".status": f.Status})
	}
	return q
}

func (r *CatalogRepo) FirstByProduct(ctx context.Context, productID int64) (*catalog.Catalog, error) {
	return r.Get(ctx, r.Select().
		Where(squirrel.Eq{catalogsTable + ".product_id": productID}).
		OrderBy(catalogsTable+".id ASC"), productID)
}

func (r *CatalogRepo) SetAPIKeyHash(ctx context.Context, id int64, hash string) error {
	return r.UpdateMap(ctx, squirrel.Eq{"id": id}, id, map[string]any{
		"api_key_hash": hash,
		"updated_at":   time.Now().UTC(),
	})
}

// StatusCounts groups catalogs by status; corporate narrows to one corporate.
func (r *CatalogRepo) StatusCounts(ctx context.Context, corporate string) ([]catalog.StatusCount, error) {
	q := postgres.Builder().Select("status", "COUNT(*) AS count").From(catalogsTable).GroupBy("status").OrderBy("status")
	if corporate != "" {
		q = q.Where(squirrel.Eq{"corporate": corporate})
	}
	return postgres.SelectAll[catalog.StatusCount](ctx, r.Q(ctx), q)
}

// TopCorporates ranks corporates by catalog count, ties broken by name.
func (r *CatalogRepo) TopCorporates(ctx context.Context, limit int) ([]catalog.CorporateCount, error) {
	q := postgres.Builder().
		Select("corporate", "COUNT(*) AS total").
		From(catalogsTable).
		GroupBy("corporate").
		OrderBy("total DESC", "corporate ASC").
		Limit(uint64(limit))
	return postgres.SelectAll[catalog.CorporateCount](ctx, r.Q(ctx), q)
}
