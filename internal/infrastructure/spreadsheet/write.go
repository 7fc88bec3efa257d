package spreadsheet

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"sage/internal/core/fieldtype"
	"sage/internal/domain/catalog"
	"sage/internal/domain/reader"
	"sage/internal/domain/schema"
)

const (
	dataSheet    = "Data"
	columnsSheet = "Columns"
	lastRow      = 1048576
	timeLayout   = "2006-01-02 15:04:05"
)

// WriteHeaders writes a one-sheet workbook holding only a header row.
// Upload templates of fixed-format imports use it.
func WriteHeaders(w io.Writer, sheet string, headers []string) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	if err := writeHeaderRow(f, sheet, headers); err != nil {
		return err
	}
	return f.Write(w)
}

// WriteTemplate renders the upload template of a product: one annotated
// header per field on the first sheet, and a description of every column on
// the second. Annotations use "(type)" and "[constraints]", which the
// validator strips when matching headers.
func WriteTemplate(w io.Writer, d *reader.Description) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", dataSheet); err != nil {
		return err
	}

	headers := make([]string, len(d.Fields))
	for i, fd := range d.Fields {
		headers[i] = TemplateHeader(fd)
	}
	if err := writeHeaderRow(f, dataSheet, headers); err != nil {
		return err
	}
	for i, fd := range d.Fields {
		if err := addValidation(f, i+1, fd); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(columnsSheet); err != nil {
		return err
	}
	if err := writeHeaderRow(f, columnsSheet, []string{
		"field_name", "field_type", "db_type", "length", "is_null", "is_primary_key",
		"is_unique", "picklist_values", "min_value", "max_value", "max_decimal_places",
		"date_format", "max_days_of_age", "is_email_format", "is_phone_format",
	}); err != nil {
		return err
	}
	for i, fd := range d.Fields {
		row := []any{
			fd.Name, fd.TypeLabel, fd.StorageType, intOrBlank(fd.Length), fd.IsNull, fd.IsPrimaryKey,
			fd.IsUnique, strings.Join(fd.Picklist, ","), floatOrBlank(fd.MinValue), floatOrBlank(fd.MaxValue),
			intOrBlank(fd.MaxDecimalPlaces), fd.DateFormat, intOrBlank(fd.MaxDaysOfAge), fd.IsEmail, fd.IsPhone,
		}
		if err := setRow(f, columnsSheet, i+2, row); err != nil {
			return err
		}
	}
	return f.Write(w)
}

// TemplateHeader is the annotated header of one field, e.g.
// "age (Integer) [Min: 0, Max: 120, Required]".
func TemplateHeader(fd reader.FieldDescription) string {
	header := fd.Name + " (" + fd.TypeLabel + ")"

	var info []string
	if fd.MinValue != nil {
		info = append(info, "Min: "+formatFloat(*fd.MinValue))
	}
	if fd.MaxValue != nil {
		info = append(info, "Max: "+formatFloat(*fd.MaxValue))
	}
	if !fd.IsNull {
		info = append(info, "Required")
	}
	if fd.Length != nil && fd.Type.Textual() {
		info = append(info, "Length: "+strconv.Itoa(*fd.Length))
	}
	if len(fd.Picklist) > 0 {
		info = append(info, "Picklist: "+strings.Join(fd.Picklist, ","))
	}
	if fd.Type == fieldtype.Decimal && fd.HasMaxDecimal && fd.MaxDecimalPlaces != nil {
		info = append(info, "Decimal Places: "+strconv.Itoa(*fd.MaxDecimalPlaces))
	}
	if fd.Type.Temporal() && fd.DateFormat != "" {
		info = append(info, "Date Format: "+fd.DateFormat)
	}
	if len(info) > 0 {
		header += " [" + strings.Join(info, ", ") + "]"
	}
	return header
}

// addValidation attaches an in-cell check to data column col when excelize
// can express it. Picklists too long for a list source are left unchecked.
func addValidation(f *excelize.File, col int, fd reader.FieldDescription) error {
	name, err := excelize.ColumnNumberToName(col)
	if err != nil {
		return err
	}
	dv := excelize.NewDataValidation(true)
	dv.Sqref = fmt.Sprintf("%s2:%s%d", name, name, lastRow)

	switch {
	case len(fd.Picklist) > 0:
		if err := dv.SetDropList(fd.Picklist); err != nil {
			return nil
		}
	case fd.Type == fieldtype.Boolean:
		if err := dv.SetDropList([]string{"true", "false"}); err != nil {
			return err
		}
	case fd.Type == fieldtype.Int && fd.MinValue != nil && fd.MaxValue != nil:
		if err := dv.SetRange(*fd.MinValue, *fd.MaxValue, excelize.DataValidationTypeWhole, excelize.DataValidationOperatorBetween); err != nil {
			return err
		}
	case (fd.Type == fieldtype.Decimal || fd.Type == fieldtype.Float) && fd.MinValue != nil && fd.MaxValue != nil:
		if err := dv.SetRange(*fd.MinValue, *fd.MaxValue, excelize.DataValidationTypeDecimal, excelize.DataValidationOperatorBetween); err != nil {
			return err
		}
	default:
		return nil
	}
	return f.AddDataValidation(dataSheet, dv)
}

// WriteProducts exports products, one per row.
func WriteProducts(w io.Writer, sheet string, products []*schema.Product) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	if err := writeHeaderRow(f, sheet, []string{"ID", "Schema Name", "Domain", "Description", "Homologated", "Created At"}); err != nil {
		return err
	}
	for i, p := range products {
		row := []any{p.ID, p.SchemaName, p.Domain, p.Description, p.IsHomologated, naive(p.CreatedAt)}
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return f.Write(w)
}

// WriteCatalogs exports catalogs, one per row.
func WriteCatalogs(w io.Writer, sheet string, catalogs []*catalog.Catalog) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	if err := writeHeaderRow(f, sheet, []string{
		"ID", "Name", "Corporate", "Responsible User", "Menu", "Product",
		"Mandatory", "Frequency", "Deadline", "Submission Email", "Created At",
	}); err != nil {
		return err
	}
	for i, c := range catalogs {
		var responsible, deadline string
		if c.ResponsibleUser != nil {
			responsible = *c.ResponsibleUser
		}
		if c.Deadline != nil {
			deadline = naive(*c.Deadline)
		}
		row := []any{
			c.ID, c.Name, c.Corporate, responsible, c.Menu, c.ProductID,
			string(c.Mandatory), string(c.Frequency), deadline, c.SubmissionEmail, naive(c.CreatedAt),
		}
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return f.Write(w)
}

func writeHeaderRow(f *excelize.File, sheet string, headers []string) error {
	cells := make([]any, len(headers))
	for i, h := range headers {
		cells[i] = h
	}
	if err := setRow(f, sheet, 1, cells); err != nil {
		return err
	}
	if len(headers) == 0 {
		return nil
	}
	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DCE6F1"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return err
	}
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	return f.SetColWidth(sheet, "A", lastCol, 20)
}

func setRow(f *excelize.File, sheet string, row int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &cells)
}

func naive(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func intOrBlank(v *int) any {
	if v == nil {
		return ""
	}
	return *v
}

func floatOrBlank(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
