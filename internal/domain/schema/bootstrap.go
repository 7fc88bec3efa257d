package schema

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"sage/internal/core/apperror"
	"sage/internal/core/fieldtype"
)

// Positional columns of a field-definition spreadsheet row.
const (
	colName = iota
	colType
	colLength
	colNullable
	colPrimaryKey
	colUnique
	colPicklist
	colPicklistValues
	colHasMinMax
	colMin
	colMax
	colEmail
	colPhone
	colHasMaxDecimal
	colMaxDecimal
	colHasDateFormat
	colDateFormat
	colHasMaxAge
	colMaxAge
	colCustomValidation
)

// DefinitionHeaders are the expected header cells of a field-definition sheet.
var DefinitionHeaders = []string{
	"name", "field_type", "length", "is_null", "is_primary_key", "is_unique",
	"is_picklist", "picklist_values", "has_min_max", "min_value", "max_value",
	"is_email_format", "is_phone_format", "has_max_decimal", "max_decimal_places",
	"has_date_format", "date_format", "has_max_days_of_age", "max_days_of_age",
	"custom_validation",
}

// ImportResult summarizes a field-definition import.
type ImportResult struct {
	Created int      `json:"created"`
	Errors  []string `json:"errors,omitempty"`
}

// ImportFields creates one field and its rule per data row. Rows are the
// sheet's data rows (header excluded); errors are reported as "Row N: ..."
// using spreadsheet numbering, so the first data row is row 2. A failing row
// does not stop the import.
func (s *Service) ImportFields(ctx context.Context, productID int64, rows [][]string) (*ImportResult, error) {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}

	res := &ImportResult{}
	for i, row := range rows {
		rowNum := i + 2
		if blankRow(row) {
			continue
		}
		f, r, err := parseDefinition(productID, row)
		if err == nil {
			err = s.createDefinition(ctx, f, r)
		}
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Row %d: %s", rowNum, errMessage(err)))
			continue
		}
		res.Created++
	}
	return res, nil
}

// RecordUpload appends the record of a raw field-definition upload.
func (s *Service) RecordUpload(ctx context.Context, f *UploadedFile) error {
	if s.uploads == nil {
		return nil
	}
	if strings.TrimSpace(f.FileName) == "" {
		return apperror.NewValidation("file name is required").WithDetail("field", "file")
	}
	if err := s.uploads.Create(ctx, f); err != nil {
		return fmt.Errorf("record upload: %w", err)
	}
	return nil
}

// Uploads lists the uploads filed under a catalog, newest first.
func (s *Service) Uploads(ctx context.Context, catalogID int64) ([]*UploadedFile, error) {
	if s.uploads == nil {
		return []*UploadedFile{}, nil
	}
	return s.uploads.ListByCatalog(ctx, catalogID)
}

func (s *Service) createDefinition(ctx context.Context, f *Field, r *ValidationRule) error {
	if err := f.Validate(ctx); err != nil {
		return err
	}
	if err := s.validateRule(ctx, r); err != nil {
		return err
	}
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.ensureUniqueName(ctx, f); err != nil {
			return err
		}
		if err := s.fields.Create(ctx, f); err != nil {
			return err
		}
		r.FieldID = f.ID
		return s.rules.Create(ctx, r)
	})
}

func parseDefinition(productID int64, row []string) (*Field, *ValidationRule, error) {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	p := cellParser{cell: cell}

	f := &Field{
		ProductID:    productID,
		Name:         cell(colName),
		FieldType:    fieldtype.Parse(cell(colType)),
		Length:       p.intp(colLength, "length"),
		IsNull:       p.flag(colNullable, "is_null"),
		IsPrimaryKey: p.flag(colPrimaryKey, "is_primary_key"),
	}
	r := &ValidationRule{
		IsUnique:         p.flag(colUnique, "is_unique"),
		IsPicklist:       p.flag(colPicklist, "is_picklist"),
		PicklistValues:   p.strp(colPicklistValues),
		HasMinMax:        p.flag(colHasMinMax, "has_min_max"),
		MinValue:         p.floatp(colMin, "min_value"),
		MaxValue:         p.floatp(colMax, "max_value"),
		IsEmailFormat:    p.flag(colEmail, "is_email_format"),
		IsPhoneFormat:    p.flag(colPhone, "is_phone_format"),
		HasMaxDecimal:    p.flag(colHasMaxDecimal, "has_max_decimal"),
		MaxDecimalPlaces: p.intp(colMaxDecimal, "max_decimal_places"),
		HasDateFormat:    p.flag(colHasDateFormat, "has_date_format"),
		DateFormat:       p.strp(colDateFormat),
		HasMaxDaysOfAge:  p.flag(colHasMaxAge, "has_max_days_of_age"),
		MaxDaysOfAge:     p.intp(colMaxAge, "max_days_of_age"),
		CustomValidation: p.strp(colCustomValidation),
	}
	if p.err != nil {
		return nil, nil, p.err
	}
	return f, r, nil
}

// cellParser keeps the first conversion error so a row reads top to bottom.
type cellParser struct {
	cell func(int) string
	err  error
}

func (p *cellParser) fail(col string, v string) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s value %q", col, v)
	}
}

func (p *cellParser) flag(i int, col string) bool {
	v := p.cell(i)
	if v == "" {
		return false
	}
	b, err := fieldtype.ParseBool(v)
	if err != nil {
		p.fail(col, v)
	}
	return b
}

func (p *cellParser) intp(i int, col string) *int {
	v := p.cell(i)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f != float64(int(f)) {
		p.fail(col, v)
		return nil
	}
	n := int(f)
	return &n
}

func (p *cellParser) floatp(i int, col string) *float64 {
	v := p.cell(i)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(col, v)
		return nil
	}
	return &f
}

func (p *cellParser) strp(i int) *string {
	v := p.cell(i)
	if v == "" {
		return nil
	}
	return &v
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func errMessage(err error) string {
	if appErr, ok := apperror.AsAppError(err); ok {
		return appErr.Message
	}
	return err.Error()
}
