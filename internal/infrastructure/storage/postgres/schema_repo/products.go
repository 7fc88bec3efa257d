// Package schema_repo stores products, fields, validation rules, the
// materialization snapshot and uploaded files in PostgreSQL.
package schema_repo

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"

	"sage/internal/domain"
	"sage/internal/domain/schema"
	"sage/internal/infrastructure/storage/postgres"
)

const productsTable = "products"

// ProductRepo implements schema.ProductRepository.
type ProductRepo struct {
	*postgres.Table[schema.Product]
}

var _ schema.ProductRepository = (*ProductRepo)(nil)

func NewProductRepo(db postgres.QuerierSource) *ProductRepo {
	return &ProductRepo{postgres.NewTable[schema.Product](db, productsTable, "product", "schema_name", "domain", "description")}
}

func (r *ProductRepo) Create(ctx context.Context, p *schema.Product) error {
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	id, err := r.Insert(ctx, p)
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

func (r *ProductRepo) Update(ctx context.Context, p *schema.Product) error {
	p.UpdatedAt = time.Now().UTC()
	return r.Table.Update(ctx, p.ID, p)
}

func (r *ProductRepo) Delete(ctx context.Context, id int64) error {
	return r.Table.Delete(ctx, squirrel.Eq{"id": id}, id)
}

func (r *ProductRepo) List(ctx context.Context, f schema.ProductFilter) (domain.ListResult[*schema.Product], error) {
	return r.Page(ctx, productQuery(r.Select(), f), f.ListFilter)
}

func productQuery(q squirrel.SelectBuilder, f schema.ProductFilter) squirrel.SelectBuilder {
	if f.Domain != "" {
		q = q.Where(squirrel.Eq{productsTable + ".domain": f.Domain})
	}
	if f.IsHomologated != nil {
		q = q.Where(squirrel.Eq{productsTable + ".is_homologated": *f.IsHomologated})
	}
	return q
}

func (r *ProductRepo) SetHomologated(ctx context.Context, id int64, homologated bool) error {
	return r.UpdateMap(ctx, squirrel.Eq{"id": id}, id, map[string]any{
		"is_homologated": homologated,
		"updated_at":     time.Now().UTC(),
	})
}
