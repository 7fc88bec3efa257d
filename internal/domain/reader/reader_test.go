package reader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sage/internal/core/apperror"
	"sage/internal/core/fieldtype"
	"sage/internal/domain/schema"
)

type stubSchema struct{ fields []*schema.Field }

func (stubSchema) GetProduct(_ context.Context, id int64) (*schema.Product, error) {
	return &schema.Product{ID: id, SchemaName: "Widgets"}, nil
}
func (s stubSchema) Fields(context.Context, int64) ([]*schema.Field, error) { return s.fields, nil }

type stubTables struct{}

func (stubTables) GetByProduct(_ context.Context, id int64) (*schema.TableInfo, error) {
	if id == 404 {
		return nil, apperror.NewNotFound("table info", id)
	}
	return &schema.TableInfo{ProductID: id, TableName: "product_1", Fields: []string{"sku"}}, nil
}

type stubDB struct {
	exists bool
	cols   []Column
	rows   *Rows
}

func (d stubDB) TableExists(context.Context, string) (bool, error)  { return d.exists, nil }
func (d stubDB) Columns(context.Context, string) ([]Column, error) { return d.cols, nil }
func (d stubDB) Dump(context.Context, string) (*Rows, error)        { return d.rows, nil }

func TestDescribe(t *testing.T) {
	colors := "red,green"
	two := 2
	lo, hi := 0.0, 10.0
	fields := []*schema.Field{
		{Name: "sku", FieldType: fieldtype.Varchar, Rule: &schema.ValidationRule{IsUnique: true, IsPicklist: true, PicklistValues: &colors}},
		{Name: "price", FieldType: fieldtype.Decimal, Rule: &schema.ValidationRule{
			HasMaxDecimal: true, MaxDecimalPlaces: &two, MinValue: &lo, MaxValue: &hi,
		}},
	}
	db := stubDB{exists: true, cols: []Column{{"sku", "character varying"}, {"legacy", "text"}}}

	d, err := New(stubSchema{fields}, stubTables{}, db).Describe(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, d.Fields, 2)
	sku := d.Fields[0]
	assert.True(t, sku.IsUnique)
	assert.Equal(t, []string{"red", "green"}, sku.Picklist)
	assert.Equal(t, "character varying", sku.StorageType)
	assert.True(t, sku.Materialized)

	price := d.Fields[1]
	assert.False(t, price.Materialized)
	assert.Equal(t, 2, *price.MaxDecimalPlaces)
	assert.Nil(t, price.MinValue, "bounds are gated by has_min_max")
	assert.Equal(t, []string{"legacy"}, d.Orphaned)
	assert.Equal(t, []string{"sku"}, d.SnapshotFields)
}

func TestDescribe_MissingTable(t *testing.T) {
	_, err := New(stubSchema{}, stubTables{}, stubDB{}).Describe(context.Background(), 1)
	assert.True(t, apperror.IsNotFound(err))

	_, err = New(stubSchema{}, stubTables{}, stubDB{exists: true}).Rows(context.Background(), 404)
	assert.True(t, apperror.IsNotFound(err))
}

func TestRows(t *testing.T) {
	want := &Rows{Columns: []string{"sku"}, Records: []map[string]any{{"sku": "A1"}}}
	got, err := New(stubSchema{}, stubTables{}, stubDB{exists: true, rows: want}).Rows(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

type recordingSnapshot struct{ calls int }

func (s *recordingSnapshot) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *recordingSnapshot) ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	s.calls++
	return fn(ctx)
}

func TestReadsRunInSnapshot(t *testing.T) {
	snap := &recordingSnapshot{}
	r := New(stubSchema{}, stubTables{}, stubDB{exists: true, rows: &Rows{}}).WithSnapshot(snap)

	_, err := r.Rows(context.Background(), 1)
	require.NoError(t, err)
	_, err = r.Describe(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, 2, snap.calls)
}
