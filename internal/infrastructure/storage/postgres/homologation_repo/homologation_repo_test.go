package homologation_repo

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sage/internal/core/apperror"
	"sage/internal/domain/catalog"
	"sage/internal/domain/homologation"
	"sage/internal/infrastructure/storage/postgres/pgtest"
)

func TestTrainingQuery(t *testing.T) {
	sql, args, err := trainingQuery(90).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM homologations h JOIN products p ON p.id = h.product_id JOIN official_items o ON o.id = h.official_item_id")
	assert.Contains(t, sql, "WHERE (h.status = $1 OR h.confidence_score >= $2)")
	assert.Equal(t, []any{homologation.StatusApproved, 90.0}, args)
}

func TestHomologationRepo_TrainingPairs(t *testing.T) {
	now := time.Now()
	rec := pgtest.New(pgtest.Result{
		Match: "FROM homologations h",
		Columns: []string{"id", "product_id", "official_item_id", "confidence_score", "is_automatic", "status",
			"homologated_by", "homologated_at", "created_at", "product_name", "product_description", "product_domain",
			"item_name", "item_description", "item_category", "item_brand"},
		Rows: [][]any{{int64(1), int64(2), int64(3), "95.50", true, "approved", nil, now, now,
			"Whole milk", "1L carton", "dairy", "Milk", "Whole milk 1L", "Dairy", "Acme"}},
	})
	repo := NewHomologationRepo(rec)

	pairs, err := repo.TrainingPairs(context.Background(), 90)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "Whole milk", pairs[0].ProductName)
	assert.Equal(t, homologation.StatusApproved, pairs[0].Status)
	require.NotNil(t, pairs[0].Confidence)
	assert.True(t, decimal.RequireFromString("95.5").Equal(*pairs[0].Confidence))
}

func TestHomologationRepo_CreateDuplicatePair(t *testing.T) {
	rec := pgtest.New(pgtest.Result{Match: "INSERT INTO homologations", Err: &pgconn.PgError{Code: "23505"}})
	repo := NewHomologationRepo(rec)

	err := repo.Create(context.Background(), &homologation.Homologation{ProductID: 1, OfficialItemID: 2})
	assert.True(t, apperror.HasCode(err, apperror.CodeConflict))
}

func TestHomologationRepo_FindPairMissing(t *testing.T) {
	repo := NewHomologationRepo(pgtest.New())
	_, err := repo.FindPair(context.Background(), 1, 2)
	assert.True(t, apperror.IsNotFound(err))
}

func TestHomologationRepo_CorporateProgress(t *testing.T) {
	rec := pgtest.New(pgtest.Result{
		Match:   "GROUP BY c.corporate",
		Columns: []string{"corporate", "total", "homologated", "pending", "rejected"},
		Rows:    [][]any{{"Acme", int64(4), int64(2), int64(1), int64(1)}},
	})
	repo := NewHomologationRepo(rec)

	rows, err := repo.CorporateProgress(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, homologation.CorporateProgress{Corporate: "Acme", Total: 4, Homologated: 2, Pending: 1, Rejected: 1}, rows[0])
}

func TestItemRepo_CreateDuplicateSKU(t *testing.T) {
	rec := pgtest.New(pgtest.Result{Match: "INSERT INTO official_items", Err: &pgconn.PgError{Code: "23505"}})
	repo := NewItemRepo(rec)

	err := repo.Create(context.Background(), &homologation.OfficialItem{SKU: "A1", Name: "Milk"})
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))
}

func TestItemRepo_ListActive(t *testing.T) {
	rec := pgtest.New()
	repo := NewItemRepo(rec)

	items, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Contains(t, rec.Last().SQL, "official_items.is_active = $1")
	assert.Equal(t, []any{true}, rec.Last().Args)
}

func TestUpsertConfig(t *testing.T) {
	cfg := &homologation.Config{Key: homologation.ConfigKey, Name: "Main", Frequency: catalog.FrequencyWeekly}
	cfg.AlertConfiguration = true

	sql, args, err := upsertConfig(cfg)
	require.NoError(t, err)
	assert.Contains(t, sql, "INSERT INTO homologation_config")
	assert.Contains(t, sql, "ON CONFLICT (singleton_key) DO UPDATE SET")
	assert.Contains(t, sql, "alert_configuration = EXCLUDED.alert_configuration")
	assert.NotContains(t, sql, "singleton_key = EXCLUDED")
	assert.Contains(t, args, homologation.ConfigKey)
}

func TestConfigRepo_GetMissing(t *testing.T) {
	repo := NewConfigRepo(pgtest.New())
	_, err := repo.Get(context.Background())
	assert.True(t, apperror.IsNotFound(err))
}

func TestConfigRepo_SaveForcesKey(t *testing.T) {
	rec := pgtest.New(pgtest.Result{Match: "INSERT INTO homologation_config", Affected: 1})
	repo := NewConfigRepo(rec)

	cfg := &homologation.Config{Key: "other"}
	require.NoError(t, repo.Save(context.Background(), cfg))
	assert.Equal(t, homologation.ConfigKey, cfg.Key)
	assert.Contains(t, rec.Last().Args, homologation.ConfigKey)
}
