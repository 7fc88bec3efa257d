package schema_repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sage/internal/core/apperror"
	"sage/internal/domain"
	"sage/internal/domain/schema"
	"sage/internal/infrastructure/storage/postgres"
	"sage/internal/infrastructure/storage/postgres/pgtest"
)

var fieldCols = []string{"id", "product_id", "name", "field_type", "length", "is_null", "is_primary_key", "created_at", "updated_at"}

func TestProductQuery_Filters(t *testing.T) {
	yes := true
	q := productQuery(postgres.Builder().Select("id").From(productsTable), schema.ProductFilter{
		Domain:        "retail",
		IsHomologated: &yes,
	})
	sql, args, err := q.ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "products.domain = $1")
	assert.Contains(t, sql, "products.is_homologated = $2")
	assert.Equal(t, []any{"retail", true}, args)
}

func TestProductRepo_CreateReturnsID(t *testing.T) {
	rec := pgtest.New(pgtest.Result{Match: "INSERT INTO products", Columns: []string{"id"}, Rows: [][]any{{int64(12)}}})
	repo := NewProductRepo(rec)

	p := &schema.Product{SchemaName: "Beverages", Domain: "retail"}
	require.NoError(t, repo.Create(context.Background(), p))
	assert.Equal(t, int64(12), p.ID)
	assert.False(t, p.CreatedAt.IsZero())

	sql := rec.Last().SQL
	assert.Contains(t, sql, "RETURNING id")
	assert.NotContains(t, sql, "(id,")
}

func TestProductRepo_ListPaginates(t *testing.T) {
	rec := pgtest.New(
		pgtest.Result{Match: "COUNT(*)", Columns: []string{"count"}, Rows: [][]any{{int64(1)}}},
		pgtest.Result{
			Match:   "ORDER BY",
			Columns: []string{"id", "schema_name", "domain", "description", "is_homologated", "created_at", "updated_at"},
			Rows:    [][]any{{int64(3), "Beverages", "retail", "", false, time.Now(), time.Now()}},
		},
	)
	repo := NewProductRepo(rec)

	res, err := repo.List(context.Background(), schema.ProductFilter{
		ListFilter: domain.ListFilter{Search: "bev", OrderBy: "-schema_name", Limit: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.TotalCount)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Beverages", res.Items[0].SchemaName)

	sql := rec.SQL()
	assert.Contains(t, sql[0], "products.schema_name ILIKE")
	assert.Contains(t, sql[1], "ORDER BY products.schema_name DESC, products.id ASC LIMIT 10")
}

func TestProductRepo_OrderByIsAllowListed(t *testing.T) {
	rec := pgtest.New(pgtest.Result{Match: "COUNT(*)", Columns: []string{"count"}, Rows: [][]any{{int64(0)}}})
	repo := NewProductRepo(rec)

	_, err := repo.List(context.Background(), schema.ProductFilter{
		ListFilter: domain.ListFilter{OrderBy: "1; DROP TABLE products"},
	})
	require.NoError(t, err)
	assert.Contains(t, rec.Last().SQL, "ORDER BY products.id ASC")
	assert.NotContains(t, rec.Last().SQL, "DROP")
}

func TestProductRepo_GetMissingIsNotFound(t *testing.T) {
	repo := NewProductRepo(pgtest.New())

	_, err := repo.GetByID(context.Background(), 99)
	assert.True(t, apperror.IsNotFound(err))
}

func TestProductRepo_SetHomologatedMissing(t *testing.T) {
	rec := pgtest.New(pgtest.Result{Match: "UPDATE products", Affected: 0})
	repo := NewProductRepo(rec)

	err := repo.SetHomologated(context.Background(), 5, true)
	assert.True(t, apperror.IsNotFound(err))
}

func TestFieldsByProduct_CreationOrder(t *testing.T) {
	sql, args, err := fieldsByProduct(postgres.Builder().Select("id").From(fieldsTable), 7).ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM product_fields WHERE product_fields.product_id = $1 ORDER BY product_fields.id ASC", sql)
	assert.Equal(t, []any{int64(7)}, args)
}

func TestFieldRepo_ListByProductAttachesRules(t *testing.T) {
	now := time.Now()
	five := 5
	rec := pgtest.New(
		pgtest.Result{Match: "FROM product_fields", Columns: fieldCols, Rows: [][]any{
			{int64(1), int64(7), "name", "varchar", &five, true, false, now, now},
			{int64(2), int64(7), "age", "int", nil, true, false, now, now},
		}},
		pgtest.Result{
			Match:   "FROM validation_rules",
			Columns: []string{"id", "product_field_id", "has_min_max", "min_value", "max_value"},
			Rows:    [][]any{{int64(9), int64(2), true, 0.0, 120.0}},
		},
	)
	repo := NewFieldRepo(rec)

	fields, err := repo.ListByProduct(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, fields, 2)
	assert.Equal(t, "name", fields[0].Name)
	assert.Equal(t, 5, *fields[0].Length)
	assert.Nil(t, fields[0].Rule)
	require.NotNil(t, fields[1].Rule)
	assert.Equal(t, 120.0, *fields[1].Rule.MaxValue)
}

func TestFieldRepo_CreateDuplicateName(t *testing.T) {
	rec := pgtest.New(pgtest.Result{
		Match: "INSERT INTO product_fields",
		Err:   &pgconn.PgError{Code: "23505", ConstraintName: "product_fields_product_id_name_key"},
	})
	repo := NewFieldRepo(rec)

	err := repo.Create(context.Background(), &schema.Field{ProductID: 7, Name: "sku"})
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))
}

func TestFieldRepo_ExistsByName(t *testing.T) {
	rec := pgtest.New(pgtest.Result{Match: "SELECT EXISTS", Columns: []string{"exists"}, Rows: [][]any{{true}}})
	repo := NewFieldRepo(rec)

	ok, err := repo.ExistsByName(context.Background(), 7, "sku", 3)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []any{"sku", int64(7), int64(3)}, rec.Last().Args)
}

func TestTableInfoRepo_CreateIfAbsent(t *testing.T) {
	rec := pgtest.New(pgtest.Result{Match: "ON CONFLICT (product_id) DO NOTHING", Columns: []string{"id"}, Rows: [][]any{{int64(4)}}})
	repo := NewTableInfoRepo(rec)

	created, err := repo.CreateIfAbsent(context.Background(), &schema.TableInfo{ProductID: 7, TableName: "product_7"})
	require.NoError(t, err)
	assert.True(t, created)

	// The conflict path returns no row.
	created, err = repo.CreateIfAbsent(context.Background(), &schema.TableInfo{ProductID: 7, TableName: "product_7"})
	require.NoError(t, err)
	assert.False(t, created)
}

func TestTableInfoRepo_StorageError(t *testing.T) {
	rec := pgtest.New(pgtest.Result{Err: errors.New("connection reset")})
	repo := NewTableInfoRepo(rec)

	_, err := repo.CreateIfAbsent(context.Background(), &schema.TableInfo{ProductID: 7})
	assert.True(t, apperror.HasCode(err, apperror.CodeStorage))
}
