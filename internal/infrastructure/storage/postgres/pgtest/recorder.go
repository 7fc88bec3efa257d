// Package pgtest provides a recording stand-in for a pgx connection so
// repositories can be tested without a database.
package pgtest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"sage/internal/infrastructure/storage/postgres"
)

// Call is one recorded statement.
type Call struct {
	SQL  string
	Args []any
}

// Result scripts the answer to the next statement whose SQL contains Match.
// An empty Match answers any statement.
type Result struct {
	Match    string
	Columns  []string
	Rows     [][]any
	Affected int64
	Err      error
}

// Recorder implements postgres.QuerierSource and postgres.Querier.
type Recorder struct {
	mu      sync.Mutex
	Calls   []Call
	results []Result
}

var (
	_ postgres.QuerierSource = (*Recorder)(nil)
	_ postgres.Querier       = (*Recorder)(nil)
)

func New(results ...Result) *Recorder {
	return &Recorder{results: results}
}

// Expect queues more scripted results.
func (r *Recorder) Expect(results ...Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, results...)
}

func (r *Recorder) GetQuerier(context.Context) postgres.Querier { return r }

// SQL returns the recorded statements in order.
func (r *Recorder) SQL() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Calls))
	for i, c := range r.Calls {
		out[i] = c.SQL
	}
	return out
}

// Last returns the most recent call.
func (r *Recorder) Last() Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Calls) == 0 {
		return Call{}
	}
	return r.Calls[len(r.Calls)-1]
}

func (r *Recorder) next(sql string, args []any) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, Call{SQL: sql, Args: args})
	for i, res := range r.results {
		if res.Match == "" || strings.Contains(sql, res.Match) {
			r.results = append(r.results[:i], r.results[i+1:]...)
			return res
		}
	}
	return Result{}
}

func (r *Recorder) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	res := r.next(sql, args)
	if res.Err != nil {
		return pgconn.CommandTag{}, res.Err
	}
	return pgconn.NewCommandTag(fmt.Sprintf("UPDATE %d", res.Affected)), nil
}

func (r *Recorder) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	res := r.next(sql, args)
	if res.Err != nil {
		return nil, res.Err
	}
	return &rows{cols: res.Columns, data: res.Rows, pos: -1}, nil
}

func (r *Recorder) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	res := r.next(sql, args)
	return &row{rows: rows{cols: res.Columns, data: res.Rows, pos: -1}, err: res.Err}
}

type row struct {
	rows rows
	err  error
}

func (r *row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if !r.rows.Next() {
		return pgx.ErrNoRows
	}
	return r.rows.Scan(dest...)
}

type rows struct {
	cols []string
	data [][]any
	pos  int
	err  error
}

func (r *rows) Close()                        {}
func (r *rows) Err() error                    { return r.err }
func (r *rows) CommandTag() pgconn.CommandTag { return pgconn.NewCommandTag("SELECT") }
func (r *rows) Conn() *pgx.Conn               { return nil }
func (r *rows) RawValues() [][]byte           { return nil }

func (r *rows) FieldDescriptions() []pgconn.FieldDescription {
	out := make([]pgconn.FieldDescription, len(r.cols))
	for i, c := range r.cols {
		out[i] = pgconn.FieldDescription{Name: c}
	}
	return out
}

func (r *rows) Next() bool {
	r.pos++
	return r.pos < len(r.data)
}

func (r *rows) Values() ([]any, error) {
	if r.pos < 0 || r.pos >= len(r.data) {
		return nil, errors.New("pgtest: no current row")
	}
	return r.data[r.pos], nil
}

func (r *rows) Scan(dest ...any) error {
	vals, err := r.Values()
	if err != nil {
		return err
	}
	if len(dest) != len(vals) {
		return fmt.Errorf("pgtest: scan %d values into %d targets", len(vals), len(dest))
	}
	for i, d := range dest {
		if err := assign(d, vals[i]); err != nil {
			return fmt.Errorf("pgtest: column %d: %w", i, err)
		}
	}
	return nil
}

// assign stores v into the pointer dst, allocating through pointer fields
// and converting between compatible kinds.
func assign(dst, v any) error {
	if s, ok := dst.(interface{ Scan(any) error }); ok {
		return s.Scan(v)
	}
	target := reflect.ValueOf(dst)
	if target.Kind() != reflect.Ptr || target.IsNil() {
		return errors.New("destination is not a pointer")
	}
	target = target.Elem()
	if v == nil {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}

	src := reflect.ValueOf(v)
	for target.Kind() == reflect.Ptr && src.Type() != target.Type() {
		if target.IsNil() {
			target.Set(reflect.New(target.Type().Elem()))
		}
		if s, ok := target.Interface().(interface{ Scan(any) error }); ok {
			return s.Scan(v)
		}
		target = target.Elem()
	}
	switch {
	case src.Type().AssignableTo(target.Type()):
		target.Set(src)
	case src.Type().ConvertibleTo(target.Type()):
		target.Set(src.Convert(target.Type()))
	case target.Kind() == reflect.Interface:
		target.Set(src)
	default:
		return fmt.Errorf("cannot assign %T to %s", v, target.Type())
	}
	return nil
}
