// Package homologation_repo stores the official catalog, product-to-item
// homologations and the homologation configuration in PostgreSQL.
package homologation_repo

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"

	"sage/internal/core/apperror"
	"sage/internal/domain"
	"sage/internal/domain/homologation"
	"sage/internal/infrastructure/storage/postgres"
)

const itemsTable = "official_items"

// ItemRepo implements homologation.ItemRepository.
type ItemRepo struct {
	*postgres.Table[homologation.OfficialItem]
}

var _ homologation.ItemRepository = (*ItemRepo)(nil)

func NewItemRepo(db postgres.QuerierSource) *ItemRepo {
	return &ItemRepo{postgres.NewTable[homologation.OfficialItem](db, itemsTable, "official item", "sku", "name", "brand")}
}

func (r *ItemRepo) Create(ctx context.Context, o *homologation.OfficialItem) error {
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now
	id, err := r.Insert(ctx, o)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewDuplicate("official item", "sku", o.SKU)
		}
		return err
	}
	o.ID = id
	return nil
}

func (r *ItemRepo) List(ctx context.Context, f homologation.ItemFilter) (domain.ListResult[*homologation.OfficialItem], error) {
	return r.Page(ctx, itemQuery(r.Select(), f), f.ListFilter)
}

func itemQuery(q squirrel.SelectBuilder, f homologation.ItemFilter) squirrel.SelectBuilder {
	if f.ActiveOnly {
		q = q.Where(squirrel.Eq{itemsTable + ".is_active": true})
	}
	if f.Category != "" {
		q = q.Where(squirrel.Eq{itemsTable + ".category": f.Category})
	}
	return q
}

// ListActive returns every active item in id order; the matcher indexes them all.
func (r *ItemRepo) ListActive(ctx context.Context) ([]*homologation.OfficialItem, error) {
	return r.All(ctx, itemQuery(r.Select(), homologation.ItemFilter{ActiveOnly: true}).OrderBy(itemsTable+".id"))
}
