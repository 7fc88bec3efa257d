package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"sage/internal/domain"
)

// Builder returns a squirrel builder using $n placeholders.
func Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// Table is the shared CRUD plumbing for one metadata table mapped onto T
// through "db" tags. Repositories embed it and add their own queries.
type Table[T any] struct {
	db      QuerierSource
	name    string
	entity  string
	cols    []string
	orderBy map[string]bool
	search  []string
}

// NewTable binds T to table name. entity names the record in NotFound errors;
// search lists the columns ListFilter.Search matches with ILIKE.
func NewTable[T any](db QuerierSource, name, entity string, search ...string) *Table[T] {
	cols := ExtractDBColumns[T]()
	order := make(map[string]bool, len(cols))
	for _, c := range cols {
		order[c] = true
	}
	return &Table[T]{db: db, name: name, entity: entity, cols: cols, orderBy: order, search: search}
}

func (t *Table[T]) Name() string      { return t.name }
func (t *Table[T]) Columns() []string { return t.cols }

// Q returns the querier for ctx.
func (t *Table[T]) Q(ctx context.Context) Querier {
	return t.db.GetQuerier(ctx)
}

// Select starts a query over every mapped column.
func (t *Table[T]) Select() squirrel.SelectBuilder {
	return Builder().Select(t.qualified()...).From(t.name)
}

func (t *Table[T]) qualified() []string {
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = t.name + "." + c
	}
	return out
}

// Insert writes v without the id column and returns the generated id.
func (t *Table[T]) Insert(ctx context.Context, v *T, omit ...string) (int64, error) {
	data := StructToMap(v, append(omit, "id")...)
	q := Builder().Insert(t.name).SetMap(data).Suffix("RETURNING id")
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert %s: %w", t.name, err)
	}

	var id int64
	if err := t.Q(ctx).QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		return 0, MapError("insert "+t.name, t.entity, "", err)
	}
	return id, nil
}

// Update rewrites every mapped column of the row with the given id except
// id, created_at and omit. A missing row is NotFound.
func (t *Table[T]) Update(ctx context.Context, id int64, v *T, omit ...string) error {
	data := StructToMap(v, append(omit, "id", "created_at")...)
	return t.UpdateMap(ctx, squirrel.Eq{"id": id}, id, data)
}

// UpdateMap applies data to the rows matching where.
func (t *Table[T]) UpdateMap(ctx context.Context, where squirrel.Sqlizer, key any, data map[string]any) error {
	q := Builder().Update(t.name).SetMap(data).Where(where)
	tag, err := t.Exec(ctx, q)
	if err != nil {
		return MapError("update "+t.name, t.entity, key, err)
	}
	if tag == 0 {
		return MapError("update "+t.name, t.entity, key, errNoRows)
	}
	return nil
}

// Delete removes the rows matching where; nothing removed is NotFound.
func (t *Table[T]) Delete(ctx context.Context, where squirrel.Sqlizer, key any) error {
	n, err := t.Exec(ctx, Builder().Delete(t.name).Where(where))
	if err != nil {
		return MapError("delete "+t.name, t.entity, key, err)
	}
	if n == 0 {
		return MapError("delete "+t.name, t.entity, key, errNoRows)
	}
	return nil
}

// Exec runs a statement and returns the affected row count.
func (t *Table[T]) Exec(ctx context.Context, q squirrel.Sqlizer) (int64, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build statement on %s: %w", t.name, err)
	}
	tag, err := t.Q(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Get scans the first row of q; no row is NotFound for key.
func (t *Table[T]) Get(ctx context.Context, q squirrel.SelectBuilder, key any) (*T, error) {
	sql, args, err := q.Limit(1).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query on %s: %w", t.name, err)
	}
	v := new(T)
	if err := pgxscan.Get(ctx, t.Q(ctx), v, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, MapError("get "+t.name, t.entity, key, errNoRows)
		}
		return nil, MapError("get "+t.name, t.entity, key, err)
	}
	return v, nil
}

// GetByID loads the row with the given id.
func (t *Table[T]) GetByID(ctx context.Context, id int64) (*T, error) {
	return t.Get(ctx, t.Select().Where(squirrel.Eq{t.name + ".id": id}), id)
}

// All scans every row of q.
func (t *Table[T]) All(ctx context.Context, q squirrel.SelectBuilder) ([]*T, error) {
	return SelectAll[*T](ctx, t.Q(ctx), q)
}

// Page counts q, then applies search, ordering and pagination from f.
func (t *Table[T]) Page(ctx context.Context, q squirrel.SelectBuilder, f domain.ListFilter) (domain.ListResult[*T], error) {
	res := domain.ListResult[*T]{Limit: f.Limit, Offset: f.Offset}

	q = t.applySearch(q, f.Search)
	countSQL, countArgs, err := Builder().Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return res, fmt.Errorf("build count on %s: %w", t.name, err)
	}
	querier := t.Q(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&res.TotalCount); err != nil {
		return res, MapError("count "+t.name, t.entity, "", err)
	}

	q = q.OrderBy(t.orderClause(f.OrderBy))
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}
	res.Items, err = SelectAll[*T](ctx, querier, q)
	if err != nil {
		return res, err
	}
	if res.Items == nil {
		res.Items = []*T{}
	}
	return res, nil
}

func (t *Table[T]) applySearch(q squirrel.SelectBuilder, search string) squirrel.SelectBuilder {
	search = strings.TrimSpace(search)
	if search == "" || len(t.search) == 0 {
		return q
	}
	pattern := "%" + search + "%"
	or := make(squirrel.Or, 0, len(t.search))
	for _, col := range t.search {
		or = append(or, squirrel.ILike{t.name + "." + col: pattern})
	}
	return q.Where(or)
}

// orderClause allow-lists the requested column; anything else sorts by id.
func (t *Table[T]) orderClause(orderBy string) string {
	dir := "ASC"
	col := orderBy
	if strings.HasPrefix(col, "-") {
		dir, col = "DESC", col[1:]
	}
	if !t.orderBy[col] {
		return t.name + ".id ASC"
	}
	return t.name + "." + col + " " + dir + ", " + t.name + ".id ASC"
}

// SelectAll runs q and scans every row into a slice of R.
func SelectAll[R any](ctx context.Context, querier Querier, q squirrel.Sqlizer) ([]R, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var out []R
	if err := pgxscan.Select(ctx, querier, &out, sql, args...); err != nil {
		return nil, MapError("select", "", "", err)
	}
	return out, nil
}
