package catalog_repo

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"

	"sage/internal/domain/notify"
	"sage/internal/infrastructure/storage/postgres"
)

// AlertRepo implements notify.AlertRepository.
type AlertRepo struct {
	*postgres.Table[notify.Alert]
}

var _ notify.AlertRepository = (*AlertRepo)(nil)

func NewAlertRepo(db postgres.QuerierSource) *AlertRepo {
	return &AlertRepo{postgres.NewTable[notify.Alert](db, "alerts", "alert")}
}

func (r *AlertRepo) Create(ctx context.Context, a *notify.Alert) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	id, err := r.Insert(ctx, a)
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

// ListByUser returns the user's alerts, newest first.
func (r *AlertRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*notify.Alert, error) {
	q := r.Select().
		Where(squirrel.Eq{"alerts.user_id": userID}).
		OrderBy("alerts.created_at DESC", "alerts.id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	return r.All(ctx, q)
}
