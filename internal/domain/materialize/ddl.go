// Package materialize turns a product's field definitions into a physical
// table with rule-derived constraints, and later adds columns for fields
// created after the table.
package materialize

import (
	"fmt"
	"hash/fnv"
	"strings"

	"sage/internal/core/fieldtype"
	"sage/internal/core/ident"
	"sage/internal/domain/schema"
)

// ColumnDef renders one column clause:
// <name> <type>[(length[, decimals])] NOT NULL|NULL [PRIMARY KEY].
func ColumnDef(f *schema.Field) string {
	var b strings.Builder
	b.WriteString(ident.Quote(f.Name))
	b.WriteByte(' ')
	b.WriteString(fieldtype.ColumnType(f.FieldType, f.Length, f.DecimalPlaces()))
	if f.IsNull {
		b.WriteString(" NULL")
	} else {
		b.WriteString(" NOT NULL")
	}
	if f.IsPrimaryKey {
		b.WriteString(" PRIMARY KEY")
	}
	return b.String()
}

// CreateTableSQL builds the CREATE TABLE statement for fields in the given order.
func CreateTableSQL(table string, fields []*schema.Field) string {
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = ColumnDef(f)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", ident.Quote(table), strings.Join(cols, ", "))
}

// AddColumnSQL builds the statement adding f to an existing table.
// A NOT NULL column can only be added to an empty table; Postgres reports
// the failure otherwise.
func AddColumnSQL(table string, f *schema.Field) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", ident.Quote(table), ColumnDef(f))
}

// ConstraintName builds "<table>_<kind>_<field>[_suffix]". Index names share
// one namespace per schema, hence the table prefix. A name over the
// identifier limit is cut and tagged with a hash of the full name.
func ConstraintName(table, kind, field, suffix string) string {
	name := table + "_" + kind + "_" + field
	if suffix != "" {
		name += "_" + suffix
	}
	if len(name) <= ident.MaxLen {
		return name
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	tag := fmt.Sprintf("_%08x", h.Sum32())
	return name[:ident.MaxLen-len(tag)] + tag
}

// ConstraintSQL derives the statements for f's validation rule, in order:
// unique, picklist, min, max, decimal places, then the custom statement.
//
// Picklist values and the custom statement are administrator input. Values
// are emitted as string literals (quotes doubled); the custom statement runs
// verbatim.
func ConstraintSQL(table string, f *schema.Field) []string {
	r := f.Rule
	if r == nil {
		return nil
	}
	tbl, col := ident.Quote(table), ident.Quote(f.Name)
	add := func(name, def string) string {
		return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s", tbl, ident.Quote(name), def)
	}

	var stmts []string
	if r.IsUnique {
		stmts = append(stmts, add(ConstraintName(table, "unique", f.Name, ""), fmt.Sprintf("UNIQUE (%s)", col)))
	}
	if values := r.Picklist(); len(values) > 0 {
		lits := make([]string, len(values))
		for i, v := range values {
			lits[i] = ident.Literal(v)
		}
		stmts = append(stmts, add(ConstraintName(table, "check", f.Name, "picklist"),
			fmt.Sprintf("CHECK (%s IN (%s))", col, strings.Join(lits, ", "))))
	}
	if r.HasMinMax {
		if r.MinValue != nil {
			stmts = append(stmts, add(ConstraintName(table, "check", f.Name, "min"),
				fmt.Sprintf("CHECK (%s >= %s)", col, fieldtype.FormatBound(*r.MinValue))))
		}
		if r.MaxValue != nil {
			stmts = append(stmts, add(ConstraintName(table, "check", f.Name, "max"),
				fmt.Sprintf("CHECK (%s <= %s)", col, fieldtype.FormatBound(*r.MaxValue))))
		}
	}
	if places := f.DecimalPlaces(); places != nil && f.FieldType == fieldtype.Decimal {
		stmts = append(stmts, add(ConstraintName(table, "check", f.Name, "decimals"),
			fmt.Sprintf("CHECK (ROUND(%s, %d) = %s)", col, *places, col)))
	}
	if r.CustomValidation != nil && strings.TrimSpace(*r.CustomValidation) != "" {
		stmts = append(stmts, *r.CustomValidation)
	}
	return stmts
}

// Plan is the ordered statement list for a fresh materialization.
func Plan(table string, fields []*schema.Field) []string {
	stmts := []string{CreateTableSQL(table, fields)}
	for _, f := range fields {
		stmts = append(stmts, ConstraintSQL(table, f)...)
	}
	return stmts
}
