// Package reader describes materialized product tables and dumps their rows.
// It never validates or writes.
package reader

import (
	"context"

	"sage/internal/core/apperror"
	"sage/internal/core/fieldtype"
	"sage/internal/core/tx"
	"sage/internal/domain/schema"
)

// Column is a physical column as reported by the catalog.
type Column struct {
	Name     string `db:"column_name" json:"name"`
	DataType string `db:"data_type" json:"data_type"`
}

// Introspector reads the physical side of a table.
type Introspector interface {
	TableExists(ctx context.Context, table string) (bool, error)
	Columns(ctx context.Context, table string) ([]Column, error)
	Dump(ctx context.Context, table string) (*Rows, error)
}

// Schema loads a product and its fields.
type Schema interface {
	GetProduct(ctx context.Context, id int64) (*schema.Product, error)
	Fields(ctx context.Context, productID int64) ([]*schema.Field, error)
}

// TableLookup returns the materialization snapshot.
type TableLookup interface {
	GetByProduct(ctx context.Context, productID int64) (*schema.TableInfo, error)
}

// FieldDescription merges a field's metadata with its physical column.
type FieldDescription struct {
	Name             string        `json:"field_name"`
	Type             fieldtype.Tag `json:"field_type"`
	TypeLabel        string        `json:"field_type_label"`
	StorageType      string        `json:"db_type,omitempty"`
	Length           *int          `json:"length"`
	IsNull           bool          `json:"is_null"`
	IsPrimaryKey     bool          `json:"is_primary_key"`
	IsUnique         bool          `json:"is_unique"`
	Picklist         []string      `json:"picklist_values"`
	MinValue         *float64      `json:"min_value"`
	MaxValue         *float64      `json:"max_value"`
	HasMaxDecimal    bool          `json:"has_max_decimal"`
	MaxDecimalPlaces *int          `json:"max_decimal_places"`
	HasDateFormat    bool          `json:"has_date_format"`
	DateFormat       string        `json:"date_format,omitempty"`
	MaxDaysOfAge     *int          `json:"max_days_of_age"`
	IsEmail          bool          `json:"is_email_format"`
	IsPhone          bool          `json:"is_phone_format"`
	CustomValidation *string       `json:"custom_validation"`
	CustomExpression *string       `json:"custom_expression"`

	// Materialized is false for fields added after the table was built.
	Materialized bool `json:"materialized"`
}

// Description is the consolidated view of a product table.
type Description struct {
	ProductID      int64              `json:"product_id"`
	SchemaName     string             `json:"schema_name"`
	Table          string             `json:"table_name"`
	SnapshotFields []string           `json:"snapshot_fields"`
	Fields         []FieldDescription `json:"fields"`

	// Orphaned lists physical columns with no field definition.
	Orphaned []string `json:"orphaned_columns"`
}

// Rows is a full dump of a table in column order.
type Rows struct {
	Columns []string         `json:"columns"`
	Records []map[string]any `json:"records"`
}

// Reader joins metadata and physical tables.
type Reader struct {
	schema   Schema
	tables   TableLookup
	db       Introspector
	snapshot tx.ReadOnlyManager
}

func New(s Schema, tables TableLookup, db Introspector) *Reader {
	return &Reader{schema: s, tables: tables, db: db}
}

// WithSnapshot runs every read in one read-only transaction, so the
// existence check, the column list and the dump see the same table.
func (r *Reader) WithSnapshot(m tx.ReadOnlyManager) *Reader {
	r.snapshot = m
	return r
}

func (r *Reader) read(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.snapshot == nil {
		return fn(ctx)
	}
	return r.snapshot.ReadOnly(ctx, fn)
}

// Describe returns one description per field of the product.
func (r *Reader) Describe(ctx context.Context, productID int64) (*Description, error) {
	var d *Description
	err := r.read(ctx, func(ctx context.Context) (err error) {
		d, err = r.describe(ctx, productID)
		return err
	})
	return d, err
}

func (r *Reader) describe(ctx context.Context, productID int64) (*Description, error) {
	p, info, err := r.load(ctx, productID)
	if err != nil {
		return nil, err
	}
	fields, err := r.schema.Fields(ctx, productID)
	if err != nil {
		return nil, err
	}
	cols, err := r.db.Columns(ctx, info.TableName)
	if err != nil {
		return nil, err
	}

	physical := make(map[string]string, len(cols))
	for _, c := range cols {
		physical[c.Name] = c.DataType
	}

	d := &Description{
		ProductID:      p.ID,
		SchemaName:     p.SchemaName,
		Table:          info.TableName,
		SnapshotFields: info.Fields,
		Fields:         make([]FieldDescription, 0, len(fields)),
		Orphaned:       []string{},
	}
	defined := make(map[string]bool, len(fields))
	for _, f := range fields {
		defined[f.Name] = true
		fd := describeField(f)
		fd.StorageType, fd.Materialized = physical[f.Name]
		d.Fields = append(d.Fields, fd)
	}
	for _, c := range cols {
		if !defined[c.Name] {
			d.Orphaned = append(d.Orphaned, c.Name)
		}
	}
	return d, nil
}

// Rows dumps every row of the product's table.
func (r *Reader) Rows(ctx context.Context, productID int64) (*Rows, error) {
	var rows *Rows
	err := r.read(ctx, func(ctx context.Context) error {
		_, info, err := r.load(ctx, productID)
		if err != nil {
			return err
		}
		rows, err = r.db.Dump(ctx, info.TableName)
		return err
	})
	return rows, err
}

func (r *Reader) load(ctx context.Context, productID int64) (*schema.Product, *schema.TableInfo, error) {
	p, err := r.schema.GetProduct(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	info, err := r.tables.GetByProduct(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	ok, err := r.db.TableExists(ctx, info.TableName)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, apperror.NewNotFound("table", info.TableName)
	}
	return p, info, nil
}

func describeField(f *schema.Field) FieldDescription {
	fd := FieldDescription{
		Name:         f.Name,
		Type:         f.FieldType,
		TypeLabel:    f.FieldType.Label(),
		Length:       f.Length,
		IsNull:       f.IsNull,
		IsPrimaryKey: f.IsPrimaryKey,
		Picklist:     []string{},
	}
	r := f.Rule
	if r == nil {
		return fd
	}
	fd.IsUnique = r.IsUnique
	if p := r.Picklist(); p != nil {
		fd.Picklist = p
	}
	if r.HasMinMax {
		fd.MinValue, fd.MaxValue = r.MinValue, r.MaxValue
	}
	fd.HasMaxDecimal = r.HasMaxDecimal
	fd.MaxDecimalPlaces = f.DecimalPlaces()
	fd.HasDateFormat = r.HasDateFormat
	fd.DateFormat = f.DateFormat()
	if r.HasMaxDaysOfAge {
		fd.MaxDaysOfAge = r.MaxDaysOfAge
	}
	fd.IsEmail = r.IsEmailFormat
	fd.IsPhone = r.IsPhoneFormat
	fd.CustomValidation = r.CustomValidation
	fd.CustomExpression = r.CustomExpression
	return fd
}
