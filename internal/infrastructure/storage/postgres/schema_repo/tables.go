package schema_repo

import (
	"context"
	"errors"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"sage/internal/domain/schema"
	"sage/internal/infrastructure/storage/postgres"
)

// TableInfoRepo implements schema.TableInfoRepository.
type TableInfoRepo struct {
	*postgres.Table[schema.TableInfo]
}

var _ schema.TableInfoRepository = (*TableInfoRepo)(nil)

func NewTableInfoRepo(db postgres.QuerierSource) *TableInfoRepo {
	return &TableInfoRepo{postgres.NewTable[schema.TableInfo](db, "product_table_info", "table")}
}

func (r *TableInfoRepo) GetByProduct(ctx context.Context, productID int64) (*schema.TableInfo, error) {
	return r.Get(ctx, r.Select().Where(squirrel.Eq{"product_table_info.product_id": productID}), productID)
}

// CreateIfAbsent inserts the first snapshot of a product; later calls leave it untouched.
func (r *TableInfoRepo) CreateIfAbsent(ctx context.Context, info *schema.TableInfo) (bool, error) {
	now := time.Now().UTC()
	info.CreatedAt, info.UpdatedAt = now, now
	if info.Fields == nil {
		info.Fields = []string{}
	}

	sql, args, err := postgres.Builder().Insert(r.Name()).
		SetMap(postgres.StructToMap(info, "id")).
		Suffix("ON CONFLICT (product_id) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return false, err
	}

	var id int64
	err = r.Q(ctx).QueryRow(ctx, sql, args...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, postgres.MapError("insert table info", "table", info.TableName, err)
	}
	info.ID = id
	return true, nil
}

// UploadedFileRepo implements schema.UploadedFileRepository.
type UploadedFileRepo struct {
	*postgres.Table[schema.UploadedFile]
}

var _ schema.UploadedFileRepository = (*UploadedFileRepo)(nil)

func NewUploadedFileRepo(db postgres.QuerierSource) *UploadedFileRepo {
	return &UploadedFileRepo{postgres.NewTable[schema.UploadedFile](db, "uploaded_files", "uploaded file")}
}

func (r *UploadedFileRepo) Create(ctx context.Context, f *schema.UploadedFile) error {
	if f.UploadedAt.IsZero() {
		f.UploadedAt = time.Now().UTC()
	}
	id, err := r.Insert(ctx, f)
	if err != nil {
		return err
	}
	f.ID = id
	return nil
}

// ListByCatalog returns upload records without their content, newest first.
func (r *UploadedFileRepo) ListByCatalog(ctx context.Context, catalogID int64) ([]*schema.UploadedFile, error) {
	q := postgres.Builder().
		Select("id", "catalog_id", "file_name", "domain", "user_id", "uploaded_at").
		From(r.Name()).
		Where(squirrel.Eq{"catalog_id": catalogID}).
		OrderBy("uploaded_at DESC", "id DESC")
	return postgres.SelectAll[*schema.UploadedFile](ctx, r.Q(ctx), q)
}
