// Package dynamic_repo runs DDL against and reads/writes rows of the
// per-product tables created at materialization.
package dynamic_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"sage/internal/core/ident"
	"sage/internal/domain/ingest"
	"sage/internal/domain/materialize"
	"sage/internal/domain/reader"
	"sage/internal/infrastructure/storage/postgres"
	"sage/pkg/logger"
)

// maxParams is the Postgres bind-parameter ceiling per statement.
const maxParams = 65535

// Store implements the storage side of materialization, ingestion and reading.
type Store struct {
	db postgres.QuerierSource
}

var (
	_ materialize.Executor = (*Store)(nil)
	_ ingest.RowWriter     = (*Store)(nil)
	_ reader.Introspector  = (*Store)(nil)
)

func NewStore(db postgres.QuerierSource) *Store {
	return &Store{db: db}
}

func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	var exists bool
	err := s.db.GetQuerier(ctx).QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_name = $1
	)`, table).Scan(&exists)
	if err != nil {
		return false, postgres.MapError("table exists", "table", table, err)
	}
	return exists, nil
}

// Exec runs one generated DDL statement. The storage message is surfaced unchanged.
func (s *Store) Exec(ctx context.Context, stmt string) error {
	logger.Debug(ctx, "executing ddl", "statement", stmt)
	if _, err := s.db.GetQuerier(ctx).Exec(ctx, stmt); err != nil {
		logger.Error(ctx, "ddl failed", "statement", stmt, "error", err)
		return postgres.MapError("ddl", "table", "", err)
	}
	return nil
}

func (s *Store) Columns(ctx context.Context, table string) ([]reader.Column, error) {
	q := postgres.Builder().
		Select("column_name", "data_type").
		From("information_schema.columns").
		Where("table_schema = current_schema()").
		Where(squirrel.Eq{"table_name": table}).
		OrderBy("ordinal_position")
	return postgres.SelectAll[reader.Column](ctx, s.db.GetQuerier(ctx), q)
}

func (s *Store) ColumnNames(ctx context.Context, table string) ([]string, error) {
	cols, err := s.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names, nil
}

// LockTable takes a transaction-scoped advisory lock keyed by the table name.
func (s *Store) LockTable(ctx context.Context, table string) error {
	if _, err := s.db.GetQuerier(ctx).Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", table); err != nil {
		return postgres.MapError("lock table", "table", table, err)
	}
	return nil
}

// InsertRows writes rows in as few multi-row INSERTs as the parameter limit
// allows. Run it inside a transaction for all-or-nothing semantics.
func (s *Store) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("insert into %s: no columns", table)
	}

	var total int64
	for _, chunk := range chunkRows(rows, maxParams/len(columns)) {
		sql, args, err := insertStatement(table, columns, chunk)
		if err != nil {
			return total, err
		}
		tag, err := s.db.GetQuerier(ctx).Exec(ctx, sql, args...)
		if err != nil {
			logger.Error(ctx, "bulk insert failed", "table", table, "rows", len(chunk), "error", err)
			return total, postgres.MapError("insert", "table", table, err)
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

func chunkRows(rows [][]any, size int) [][][]any {
	if size < 1 {
		size = 1
	}
	var out [][][]any
	for len(rows) > size {
		out = append(out, rows[:size])
		rows = rows[size:]
	}
	return append(out, rows)
}

func insertStatement(table string, columns []string, rows [][]any) (string, []any, error) {
	q := postgres.Builder().Insert(ident.Quote(table)).Columns(ident.QuoteAll(columns)...)
	for _, row := range rows {
		vals := make([]any, len(row))
		for i, v := range row {
			vals[i] = bindValue(v)
		}
		q = q.Values(vals...)
	}
	return q.ToSql()
}

// bindValue sends decimals as text so Postgres parses them into numeric
// without a float round trip.
func bindValue(v any) any {
	switch d := v.(type) {
	case decimal.Decimal:
		return d.String()
	case *decimal.Decimal:
		if d == nil {
			return nil
		}
		return d.String()
	}
	return v
}

// Dump returns every row of table as column-keyed records, in column order.
func (s *Store) Dump(ctx context.Context, table string) (*reader.Rows, error) {
	sql := "SELECT * FROM " + ident.Quote(table)
	rows, err := s.db.GetQuerier(ctx).Query(ctx, sql)
	if err != nil {
		return nil, postgres.MapError("dump", "table", table, err)
	}
	defer rows.Close()

	descs := rows.FieldDescriptions()
	out := &reader.Rows{Columns: make([]string, len(descs)), Records: []map[string]any{}}
	for i, d := range descs {
		out.Columns[i] = d.Name
	}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, postgres.MapError("dump", "table", table, err)
		}
		rec := make(map[string]any, len(vals))
		for i, v := range vals {
			rec[out.Columns[i]] = v
		}
		out.Records = append(out.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, postgres.MapError("dump", "table", table, err)
	}
	return out, nil
}
