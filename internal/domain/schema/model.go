// Package schema is the Schema Definition Store: products (logical schemas),
// their fields and per-field validation rules, plus the materialization
// snapshot and uploaded field-definition files.
package schema

import (
	"context"
	"strings"
	"time"

	"sage/internal/core/apperror"
	"sage/internal/core/fieldtype"
	"sage/internal/core/ident"
)

// Product is a logical schema owned by an administrator.
type Product struct {
	ID            int64     `db:"id" json:"id"`
	SchemaName    string    `db:"schema_name" json:"schema_name"`
	Domain        string    `db:"domain" json:"domain"`
	Description   string    `db:"description" json:"description"`
	IsHomologated bool      `db:"is_homologated" json:"is_homologated"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// TableName is the physical table holding the product's rows.
func (p *Product) TableName() string {
	return ident.TableName(p.ID)
}

func (p *Product) Validate(_ context.Context) error {
	if strings.TrimSpace(p.SchemaName) == "" {
		return apperror.NewValidation("schema_name is required").WithDetail("field", "schema_name")
	}
	if strings.TrimSpace(p.Domain) == "" {
		return apperror.NewValidation("domain is required").WithDetail("field", "domain")
	}
	return nil
}

// Field is one column definition of a product.
type Field struct {
	ID           int64         `db:"id" json:"id"`
	ProductID    int64         `db:"product_id" json:"product"`
	Name         string        `db:"name" json:"name"`
	FieldType    fieldtype.Tag `db:"field_type" json:"field_type"`
	Length       *int          `db:"length" json:"length"`
	IsNull       bool          `db:"is_null" json:"is_null"`
	IsPrimaryKey bool          `db:"is_primary_key" json:"is_primary_key"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`

	// Rule is loaded alongside the field when present.
	Rule *ValidationRule `db:"-" json:"validation_rule,omitempty"`
}

func (f *Field) Validate(_ context.Context) error {
	if err := ident.Validate("field name", f.Name); err != nil {
		return err
	}
	if f.Length != nil && *f.Length <= 0 {
		return apperror.NewValidation("length must be positive").WithDetail("field", "length")
	}
	if f.IsPrimaryKey && f.IsNull {
		return apperror.NewValidation("a primary key field cannot be nullable").WithDetail("field", "is_null")
	}
	return nil
}

// DateFormat returns the rule's date format when the flag enables it.
func (f *Field) DateFormat() string {
	if f.Rule != nil && f.Rule.HasDateFormat && f.Rule.DateFormat != nil {
		return *f.Rule.DateFormat
	}
	return ""
}

// DecimalPlaces returns the rule's max decimal places when the flag enables it.
func (f *Field) DecimalPlaces() *int {
	if f.Rule != nil && f.Rule.HasMaxDecimal && f.Rule.MaxDecimalPlaces != nil {
		return f.Rule.MaxDecimalPlaces
	}
	return nil
}

// Constraints derives the type-level checks for this field. Rule flags gate
// their paired values: a false flag drops the value whatever it holds.
func (f *Field) Constraints(now time.Time) fieldtype.Constraints {
	c := fieldtype.Constraints{Now: now}
	if f.Length != nil && f.FieldType.Textual() {
		c.MaxLength = *f.Length
	}

	r := f.Rule
	if r == nil {
		return c
	}
	c.Email = r.IsEmailFormat
	c.Phone = r.IsPhoneFormat
	if r.HasMinMax {
		c.Min, c.Max = r.MinValue, r.MaxValue
	}
	if f.FieldType == fieldtype.Decimal {
		c.MaxDecimals = f.DecimalPlaces()
	}
	c.DateFormat = f.DateFormat()
	if r.HasMaxDaysOfAge {
		c.MaxAgeDays = r.MaxDaysOfAge
	}
	return c
}

// ValidationRule holds the optional per-field rules. Each Has*/Is* flag gates
// its paired value.
type ValidationRule struct {
	ID      int64 `db:"id" json:"id"`
	FieldID int64 `db:"product_field_id" json:"product_field"`

	IsUnique bool `db:"is_unique" json:"is_unique"`

	IsPicklist              bool    `db:"is_picklist" json:"is_picklist"`
	PicklistValues          *string `db:"picklist_values" json:"picklist_values"`
	PicklistCaseInsensitive bool    `db:"picklist_case_insensitive" json:"picklist_case_insensitive"`

	HasMinMax bool     `db:"has_min_max" json:"has_min_max"`
	MinValue  *float64 `db:"min_value" json:"min_value"`
	MaxValue  *float64 `db:"max_value" json:"max_value"`

	IsEmailFormat bool `db:"is_email_format" json:"is_email_format"`
	IsPhoneFormat bool `db:"is_phone_format" json:"is_phone_format"`

	HasMaxDecimal    bool `db:"has_max_decimal" json:"has_max_decimal"`
	MaxDecimalPlaces *int `db:"max_decimal_places" json:"max_decimal_places"`

	HasDateFormat bool    `db:"has_date_format" json:"has_date_format"`
	DateFormat    *string `db:"date_format" json:"date_format"`

	HasMaxDaysOfAge bool `db:"has_max_days_of_age" json:"has_max_days_of_age"`
	MaxDaysOfAge    *int `db:"max_days_of_age" json:"max_days_of_age"`

	// CustomValidation is a raw SQL statement run verbatim at materialization.
	// Administrators are trusted; nothing escapes it.
	CustomValidation *string `db:"custom_validation" json:"custom_validation"`

	// CustomExpression is a CEL predicate over `value` checked per row.
	CustomExpression *string `db:"custom_expression" json:"custom_expression"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Picklist splits PicklistValues on commas, trimming blanks.
// It returns nil when the picklist flag is off.
func (r *ValidationRule) Picklist() []string {
	if r == nil || !r.IsPicklist || r.PicklistValues == nil {
		return nil
	}
	var out []string
	for _, v := range strings.Split(*r.PicklistValues, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// InPicklist reports whether v is an allowed picklist value.
// Matching is exact unless PicklistCaseInsensitive is set.
func (r *ValidationRule) InPicklist(v string) bool {
	for _, allowed := range r.Picklist() {
		if allowed == v || (r.PicklistCaseInsensitive && strings.EqualFold(allowed, v)) {
			return true
		}
	}
	return false
}

func (r *ValidationRule) Validate(_ context.Context) error {
	if r.HasMinMax && r.MinValue != nil && r.MaxValue != nil && *r.MinValue > *r.MaxValue {
		return apperror.NewValidation("min_value must not exceed max_value").WithDetail("field", "min_value")
	}
	if r.HasMaxDecimal && (r.MaxDecimalPlaces == nil || *r.MaxDecimalPlaces < 0) {
		return apperror.NewValidation("max_decimal_places is required when has_max_decimal is set").
			WithDetail("field", "max_decimal_places")
	}
	if r.HasMaxDaysOfAge && (r.MaxDaysOfAge == nil || *r.MaxDaysOfAge < 0) {
		return apperror.NewValidation("max_days_of_age is required when has_max_days_of_age is set").
			WithDetail("field", "max_days_of_age")
	}
	if r.HasDateFormat && r.DateFormat != nil && *r.DateFormat != "" {
		if _, ok := fieldtype.DateLayout(*r.DateFormat); !ok {
			return apperror.NewValidation("unsupported date_format").
				WithDetail("field", "date_format").
				WithDetail("supported", []string{"MM/DD/YYYY", "DD/MM/YYYY", "YYYY-MM-DD", "MM-DD-YYYY", "DD-MM-YYYY"})
		}
	}
	if r.IsPicklist && len(r.Picklist()) == 0 {
		return apperror.NewValidation("picklist_values is required when is_picklist is set").
			WithDetail("field", "picklist_values")
	}
	return nil
}

// TableInfo is the materialization snapshot. It is written once and never
// refreshed when fields change later.
type TableInfo struct {
	ID        int64     `db:"id" json:"id"`
	ProductID int64     `db:"product_id" json:"product"`
	TableName string    `db:"table_name" json:"table_name"`
	Fields    []string  `db:"fields" json:"fields"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// UploadedFile records a raw spreadsheet upload tied to a catalog.
type UploadedFile struct {
	ID         int64     `db:"id" json:"id"`
	CatalogID  int64     `db:"catalog_id" json:"catalog"`
	FileName   string    `db:"file_name" json:"file_name"`
	Domain     *string   `db:"domain" json:"domain"`
	UserID     *string   `db:"user_id" json:"user"`
	Content    []byte    `db:"content" json:"-"`
	UploadedAt time.Time `db:"uploaded_at" json:"uploaded_at"`
}
