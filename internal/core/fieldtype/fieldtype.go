// Package fieldtype is the closed taxonomy of product field types.
//
// Every call site that needs to know what a field type means goes through
// this package: DDL generation (StorageFor, ColumnType), ingestion (Coerce)
// and the validate-only path (Check). Keeping the three in one table is what
// stops them drifting apart.
package fieldtype

import (
	"fmt"
	"strings"
)

// Tag is the abstract field type stored on a ProductField.
type Tag string

const (
	Varchar  Tag = "varchar"
	Int      Tag = "int"
	Float    Tag = "float"
	Boolean  Tag = "boolean"
	Date     Tag = "date"
	DateTime Tag = "datetime"
	Text     Tag = "text"
	Decimal  Tag = "decimal"
)

// All lists the known tags in display order.
var All = []Tag{Varchar, Int, Float, Boolean, Date, DateTime, Text, Decimal}

// StorageType is a Postgres column type name without modifiers.
type StorageType string

const (
	StorageVarchar   StorageType = "VARCHAR"
	StorageInteger   StorageType = "INTEGER"
	StorageFloat     StorageType = "FLOAT"
	StorageBoolean   StorageType = "BOOLEAN"
	StorageDate      StorageType = "DATE"
	StorageTimestamp StorageType = "TIMESTAMP"
	StorageText      StorageType = "TEXT"
	StorageDecimal   StorageType = "DECIMAL"
)

// DefaultDecimalPrecision is used when a decimal field has no length.
const DefaultDecimalPrecision = 10

var storage = map[Tag]StorageType{
	Varchar:  StorageVarchar,
	Int:      StorageInteger,
	Float:    StorageFloat,
	Boolean:  StorageBoolean,
	Date:     StorageDate,
	DateTime: StorageTimestamp,
	Text:     StorageText,
	Decimal:  StorageDecimal,
}

var labels = map[Tag]string{
	Varchar:  "Char",
	Int:      "Integer",
	Float:    "Float",
	Boolean:  "Boolean",
	Date:     "Date",
	DateTime: "DateTime",
	Text:     "Text",
	Decimal:  "Decimal",
}

// Parse normalizes s into a Tag. Unknown values are returned as-is so the
// caller can decide whether to reject them or accept the TEXT fallback.
func Parse(s string) Tag {
	return Tag(strings.ToLower(strings.TrimSpace(s)))
}

// Known reports whether t is one of the eight tags.
func (t Tag) Known() bool {
	_, ok := storage[t]
	return ok
}

// Label is the human-readable name used in templates and listings.
func (t Tag) Label() string {
	if l, ok := labels[t]; ok {
		return l
	}
	return "Text"
}

// Textual reports whether values are stored as strings.
func (t Tag) Textual() bool {
	return t == Varchar || t == Text || !t.Known()
}

// Numeric reports whether min/max bounds apply.
func (t Tag) Numeric() bool {
	return t == Int || t == Float || t == Decimal
}

// Temporal reports whether the value is a date or timestamp.
func (t Tag) Temporal() bool {
	return t == Date || t == DateTime
}

// StorageFor maps a tag to its column type. Unknown tags fall back to TEXT.
func StorageFor(t Tag) StorageType {
	if st, ok := storage[t]; ok {
		return st
	}
	return StorageText
}

// ColumnType renders the full column type including modifiers:
// VARCHAR(length) when a length is set, DECIMAL(length or 10, decimals or 0).
func ColumnType(t Tag, length, decimals *int) string {
	st := StorageFor(t)
	switch st {
	case StorageVarchar:
		if length != nil && *length > 0 {
			return fmt.Sprintf("%s(%d)", st, *length)
		}
	case StorageDecimal:
		precision, scale := DefaultDecimalPrecision, 0
		if length != nil && *length > 0 {
			precision = *length
		}
		if decimals != nil && *decimals > 0 {
			scale = *decimals
		}
		return fmt.Sprintf("%s(%d, %d)", st, precision, scale)
	}
	return string(st)
}
