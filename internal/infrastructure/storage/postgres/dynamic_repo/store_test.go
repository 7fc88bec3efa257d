package dynamic_repo

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sage/internal/core/apperror"
	"sage/internal/infrastructure/storage/postgres/pgtest"
)

func TestInsertStatement_QuotesAndBinds(t *testing.T) {
	sql, args, err := insertStatement("product_7", []string{"name", "age"}, [][]any{
		{"Amy", int64(30)},
		{"Bob", nil},
	})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "product_7" ("name","age") VALUES ($1,$2),($3,$4)`, sql)
	assert.Equal(t, []any{"Amy", int64(30), "Bob", nil}, args)
}

func TestInsertStatement_DecimalsAsText(t *testing.T) {
	_, args, err := insertStatement("product_7", []string{"price"}, [][]any{{decimal.RequireFromString("99.999")}})
	require.NoError(t, err)
	assert.Equal(t, []any{"99.999"}, args)
}

func TestChunkRows(t *testing.T) {
	rows := make([][]any, 5)
	chunks := chunkRows(rows, 2)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 2)
	assert.Len(t, chunks[2], 1)

	assert.Len(t, chunkRows(rows, 0), 5)
}

func TestStore_InsertRowsSumsAffected(t *testing.T) {
	rec := pgtest.New(pgtest.Result{Match: "INSERT INTO", Affected: 2})
	store := NewStore(rec)

	n, err := store.InsertRows(context.Background(), "product_7", []string{"name"}, [][]any{{"Amy"}, {"Bob"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestStore_InsertRowsEmpty(t *testing.T) {
	rec := pgtest.New()
	n, err := NewStore(rec).InsertRows(context.Background(), "product_7", []string{"name"}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, rec.Calls)
}

func TestStore_InsertCheckViolationKeepsMessage(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:           "23514",
		Message:        `new row for relation "product_7" violates check constraint "product_7_color_picklist"`,
		ConstraintName: "product_7_color_picklist",
	}
	rec := pgtest.New(pgtest.Result{Match: "INSERT INTO", Err: pgErr})

	_, err := NewStore(rec).InsertRows(context.Background(), "product_7", []string{"color"}, [][]any{{"Red"}})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeStorage))
	assert.Contains(t, err.Error(), "product_7_color_picklist")
}

func TestStore_TableExists(t *testing.T) {
	rec := pgtest.New(pgtest.Result{Match: "information_schema.tables", Columns: []string{"exists"}, Rows: [][]any{{true}}})
	ok, err := NewStore(rec).TableExists(context.Background(), "product_7")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []any{"product_7"}, rec.Last().Args)
}

func TestStore_ColumnNames(t *testing.T) {
	rec := pgtest.New(pgtest.Result{
		Match:   "information_schema.columns",
		Columns: []string{"column_name", "data_type"},
		Rows:    [][]any{{"name", "character varying"}, {"age", "integer"}},
	})
	names, err := NewStore(rec).ColumnNames(context.Background(), "product_7")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age"}, names)
	assert.Contains(t, rec.Last().SQL, "ORDER BY ordinal_position")
}

func TestStore_LockTable(t *testing.T) {
	rec := pgtest.New()
	require.NoError(t, NewStore(rec).LockTable(context.Background(), "product_7"))
	assert.Equal(t, "SELECT pg_advisory_xact_lock(hashtext($1))", rec.Last().SQL)
}

func TestStore_ExecDuplicateTable(t *testing.T) {
	rec := pgtest.New(pgtest.Result{Err: &pgconn.PgError{Code: "42P07", Message: `relation "product_7" already exists`}})
	err := NewStore(rec).Exec(context.Background(), `CREATE TABLE "product_7" ()`)
	assert.True(t, apperror.HasCode(err, apperror.CodeStorage))
	assert.Contains(t, err.Error(), "already exists")
}

func TestStore_Dump(t *testing.T) {
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rec := pgtest.New(pgtest.Result{
		Match:   `SELECT * FROM "product_7"`,
		Columns: []string{"name", "age", "born"},
		Rows:    [][]any{{"Amy", int64(30), day}, {"Bob", nil, nil}},
	})

	out, err := NewStore(rec).Dump(context.Background(), "product_7")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age", "born"}, out.Columns)
	require.Len(t, out.Records, 2)
	assert.Equal(t, "Amy", out.Records[0]["name"])
	assert.Nil(t, out.Records[1]["age"])
}
