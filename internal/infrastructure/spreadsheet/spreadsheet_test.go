package spreadsheet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"sage/internal/core/apperror"
	"sage/internal/core/fieldtype"
	"sage/internal/domain/ingest"
	"sage/internal/domain/reader"
	"sage/internal/domain/schema"
)

func ptr[T any](v T) *T { return &v }

func workbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func TestReadTable(t *testing.T) {
	buf := workbook(t, [][]any{
		{" name ", "age"},
		{"Amy", 30},
		{"", ""},
		{"Bob", "abc"},
	})

	headers, rows, err := ReadTable(buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "age"}, headers)
	assert.Equal(t, [][]string{{"Amy", "30"}, {"Bob", "abc"}}, rows)
}

func TestReadTable_NotAWorkbook(t *testing.T) {
	_, _, err := ReadTable(bytes.NewBufferString("name,age\n"))
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))
}

func TestCells(t *testing.T) {
	got := Cells([][]string{{"a", ""}})
	assert.Equal(t, [][]any{{"a", nil}}, got)
}

func TestTemplateHeader(t *testing.T) {
	tests := []struct {
		name string
		fd   reader.FieldDescription
		want string
	}{
		{
			name: "nullable text",
			fd:   reader.FieldDescription{Name: "note", Type: fieldtype.Text, TypeLabel: "Text", IsNull: true},
			want: "note (Text)",
		},
		{
			name: "bounded integer",
			fd:   reader.FieldDescription{Name: "age", Type: fieldtype.Int, TypeLabel: "Integer", MinValue: ptr(0.0), MaxValue: ptr(120.0)},
			want: "age (Integer) [Min: 0, Max: 120, Required]",
		},
		{
			name: "picklist with length",
			fd: reader.FieldDescription{
				Name: "color", Type: fieldtype.Varchar, TypeLabel: "Short Text", Length: ptr(5),
				IsNull: true, Picklist: []string{"red", "green"},
			},
			want: "color (Short Text) [Length: 5, Picklist: red,green]",
		},
		{
			name: "decimal places",
			fd: reader.FieldDescription{
				Name: "price", Type: fieldtype.Decimal, TypeLabel: "Decimal", IsNull: true,
				HasMaxDecimal: true, MaxDecimalPlaces: ptr(2),
			},
			want: "price (Decimal) [Decimal Places: 2]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TemplateHeader(tt.fd)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.fd.Name, ingest.NormalizeHeader(got))
		})
	}
}

func TestWriteTemplate(t *testing.T) {
	d := &reader.Description{
		SchemaName: "people",
		Fields: []reader.FieldDescription{
			{Name: "name", Type: fieldtype.Varchar, TypeLabel: "Short Text", StorageType: "character varying", Length: ptr(5)},
			{Name: "active", Type: fieldtype.Boolean, TypeLabel: "Boolean", IsNull: true},
			{Name: "age", Type: fieldtype.Int, TypeLabel: "Integer", MinValue: ptr(0.0), MaxValue: ptr(120.0)},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteTemplate(&buf, d))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{dataSheet, columnsSheet}, f.GetSheetList())
	rows, err := f.GetRows(dataSheet)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "name (Short Text) [Required, Length: 5]", rows[0][0])

	dvs, err := f.GetDataValidations(dataSheet)
	require.NoError(t, err)
	assert.Len(t, dvs, 2)

	cols, err := f.GetRows(columnsSheet)
	require.NoError(t, err)
	require.Len(t, cols, 4)
	assert.Equal(t, "field_name", cols[0][0])
	assert.Equal(t, []string{"age", "Integer"}, cols[3][:2])
}

func TestWriteProducts(t *testing.T) {
	var buf bytes.Buffer
	products := []*schema.Product{{ID: 7, SchemaName: "tyres", Domain: "auto"}}
	require.NoError(t, WriteProducts(&buf, "Pending Products", products))

	headers, rows, err := ReadTable(&buf)
	require.NoError(t, err)
	assert.Equal(t, "Schema Name", headers[1])
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"7", "tyres", "auto"}, rows[0][:3])
}

func TestWriteHeaders(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHeaders(&buf, "Items", []string{"sku", "name"}))

	headers, rows, err := ReadTable(&buf)
	require.NoError(t, err)
	assert.Equal(t, []string{"sku", "name"}, headers)
	assert.Empty(t, rows)
}
