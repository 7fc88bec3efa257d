package dto

import (
	"sage/internal/core/fieldtype"
	"sage/internal/domain/schema"
)

// --- Products ---

// ProductRequest is the body of product create and update.
type ProductRequest struct {
	SchemaName  string `json:"schema_name" binding:"required"`
	Domain      string `json:"domain" binding:"required"`
	Description string `json:"description"`
}

func (r *ProductRequest) ToEntity() *schema.Product {
	return &schema.Product{SchemaName: r.SchemaName, Domain: r.Domain, Description: r.Description}
}

// ProductQuery filters product listings.
type ProductQuery struct {
	ListQuery
	Domain        string `form:"domain"`
	IsHomologated *bool  `form:"is_homologated"`
}

func (q ProductQuery) ToFilter() schema.ProductFilter {
	return schema.ProductFilter{ListFilter: q.ListQuery.ToFilter(), Domain: q.Domain, IsHomologated: q.IsHomologated}
}

// --- Fields ---

// FieldRequest is the body of field create and update.
type FieldRequest struct {
	Name         string        `json:"name" binding:"required"`
	FieldType    fieldtype.Tag `json:"field_type" binding:"required"`
	Length       *int          `json:"length"`
	IsNull       bool          `json:"is_null"`
	IsPrimaryKey bool          `json:"is_primary_key"`
}

func (r *FieldRequest) ToEntity(productID int64) *schema.Field {
	return &schema.Field{
		ProductID:    productID,
		Name:         r.Name,
		FieldType:    r.FieldType,
		Length:       r.Length,
		IsNull:       r.IsNull,
		IsPrimaryKey: r.IsPrimaryKey,
	}
}

// --- Validation rules ---

// RuleRequest is the body of rule create and update.
type RuleRequest struct {
	IsUnique                bool     `json:"is_unique"`
	IsPicklist              bool     `json:"is_picklist"`
	PicklistValues          *string  `json:"picklist_values"`
	PicklistCaseInsensitive bool     `json:"picklist_case_insensitive"`
	HasMinMax               bool     `json:"has_min_max"`
	MinValue                *float64 `json:"min_value"`
	MaxValue                *float64 `json:"max_value"`
	IsEmailFormat           bool     `json:"is_email_format"`
	IsPhoneFormat           bool     `json:"is_phone_format"`
	HasMaxDecimal           bool     `json:"has_max_decimal"`
	MaxDecimalPlaces        *int     `json:"max_decimal_places"`
	HasDateFormat           bool     `json:"has_date_format"`
	DateFormat              *string  `json:"date_format"`
	HasMaxDaysOfAge         bool     `json:"has_max_days_of_age"`
	MaxDaysOfAge            *int     `json:"max_days_of_age"`
	CustomValidation        *string  `json:"custom_validation"`
	CustomExpression        *string  `json:"custom_expression"`
}

func (r *RuleRequest) ToEntity(fieldID int64) *schema.ValidationRule {
	return &schema.ValidationRule{
		FieldID:                 fieldID,
		IsUnique:                r.IsUnique,
		IsPicklist:              r.IsPicklist,
		PicklistValues:          r.PicklistValues,
		PicklistCaseInsensitive: r.PicklistCaseInsensitive,
		HasMinMax:               r.HasMinMax,
		MinValue:                r.MinValue,
		MaxValue:                r.MaxValue,
		IsEmailFormat:           r.IsEmailFormat,
		IsPhoneFormat:           r.IsPhoneFormat,
		HasMaxDecimal:           r.HasMaxDecimal,
		MaxDecimalPlaces:        r.MaxDecimalPlaces,
		HasDateFormat:           r.HasDateFormat,
		DateFormat:              r.DateFormat,
		HasMaxDaysOfAge:         r.HasMaxDaysOfAge,
		MaxDaysOfAge:            r.MaxDaysOfAge,
		CustomValidation:        r.CustomValidation,
		CustomExpression:        r.CustomExpression,
	}
}
