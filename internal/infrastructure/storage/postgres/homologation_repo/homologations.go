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

const homologationsTable = "homologations"

// HomologationRepo implements homologation.Repository.
type HomologationRepo struct {
	*postgres.Table[homologation.Homologation]
}

var _ homologation.Repository = (*HomologationRepo)(nil)

func NewHomologationRepo(db postgres.QuerierSource) *HomologationRepo {
	return &HomologationRepo{postgres.NewTable[homologation.Homologation](db, homologationsTable, "homologation")}
}

func (r *HomologationRepo) Create(ctx context.Context, h *homologation.Homologation) error {
	h.CreatedAt = time.Now().UTC()
	if h.HomologatedAt.IsZero() {
		h.HomologatedAt = h.CreatedAt
	}
	id, err := r.Insert(ctx, h)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return apperror.NewConflict("product is already linked to this official item").
				WithDetail("product", h.ProductID).
				WithDetail("official_product", h.OfficialItemID)
		}
		return err
	}
	h.ID = id
	return nil
}

func (r *HomologationRepo) Update(ctx context.Context, h *homologation.Homologation) error {
	return r.Table.Update(ctx, h.ID, h)
}

func (r *HomologationRepo) List(ctx context.Context, f homologation.Filter) (domain.ListResult[*homologation.Homologation], error) {
	q := r.Select()
	if f.ProductID != nil {
		q = q.Where(squirrel.Eq{homologationsTable + ".product_id": *f.ProductID})
	}
	if f.Status != "" {
		q = q.Where(squirrel.Eq{homologationsTable + ".status": f.Status})
	}
	if f.OrderBy == "" {
		f.OrderBy = "-homologated_at"
	}
	return r.Page(ctx, q, f.ListFilter)
}

func (r *HomologationRepo) FindPair(ctx context.Context, productID, itemID int64) (*homologation.Homologation, error) {
	return r.Get(ctx, r.Select().Where(squirrel.Eq{
		homologationsTable + ".product_id":       productID,
		homologationsTable + ".official_item_id": itemID,
	}), productID)
}

func trainingQuery(minScore float64) squirrel.SelectBuilder {
	return postgres.Builder().
		Select(
			"h.id", "h.product_id", "h.official_item_id", "h.confidence_score", "h.is_automatic",
			"h.status", "h.homologated_by", "h.homologated_at", "h.created_at",
			"p.schema_name AS product_name", "p.description AS product_description", "p.domain AS product_domain",
			"o.name AS item_name", "o.description AS item_description",
			"o.category AS item_category", "o.brand AS item_brand",
		).
		From(homologationsTable + " h").
		Join("products p ON p.id = h.product_id").
		Join(itemsTable + " o ON o.id = h.official_item_id").
		Where(squirrel.Or{
			squirrel.Eq{"h.status": homologation.StatusApproved},
			squirrel.GtOrEq{"h.confidence_score": minScore},
		}).
		OrderBy("h.id")
}

func (r *HomologationRepo) TrainingPairs(ctx context.Context, minScore float64) ([]homologation.Pair, error) {
	return postgres.SelectAll[homologation.Pair](ctx, r.Q(ctx), trainingQuery(minScore))
}

func (r *HomologationRepo) StatusCounts(ctx context.Context) ([]homologation.StatusCount, error) {
	q := postgres.Builder().Select("status", "COUNT(*) AS count").
		From(homologationsTable).
		GroupBy("status").
		OrderBy("status")
	return postgres.SelectAll[homologation.StatusCount](ctx, r.Q(ctx), q)
}

// CorporateProgress counts, per corporate, the products its catalogs collect
// and the homologations on them by status.
func (r *HomologationRepo) CorporateProgress(ctx context.Context) ([]homologation.CorporateProgress, error) {
	q := postgres.Builder().
		Select(
			"c.corporate",
			"COUNT(DISTINCT c.product_id) AS total",
			"COUNT(DISTINCT c.product_id) FILTER (WHERE p.is_homologated) AS homologated",
			"COUNT(DISTINCT h.id) FILTER (WHERE h.status = 'pending') AS pending",
			"COUNT(DISTINCT h.id) FILTER (WHERE h.status = 'rejected') AS rejected",
		).
		From("catalogs c").
		Join("products p ON p.id = c.product_id").
		LeftJoin(homologationsTable + " h ON h.product_id = c.product_id").
		GroupBy("c.corporate").
		OrderBy("c.corporate")
	return postgres.SelectAll[homologation.CorporateProgress](ctx, r.Q(ctx), q)
}
