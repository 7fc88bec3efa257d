// Package spreadsheet reads uploaded xlsx workbooks and renders the xlsx
// outputs of the API: product templates and exports.
package spreadsheet

import (
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"sage/internal/core/apperror"
)

// ContentType is the MIME type of xlsx files.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReadRows returns every row of the first sheet. Trailing empty cells are
// trimmed by excelize, so rows may be shorter than the header.
func ReadRows(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperror.NewInvalidInput("file is not a readable xlsx workbook").WithCause(err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperror.NewInvalidInput("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apperror.NewInvalidInput("cannot read first sheet").WithCause(err)
	}
	return rows, nil
}

// ReadTable splits the first sheet into its header row and data rows.
// Blank data rows are dropped.
func ReadTable(r io.Reader) ([]string, [][]string, error) {
	rows, err := ReadRows(r)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, apperror.NewInvalidInput("file is empty")
	}
	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}
	data := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if !blank(row) {
			data = append(data, row)
		}
	}
	return headers, data, nil
}

// Cells converts string rows to the generic form the validator takes.
// Empty cells become nil.
func Cells(rows [][]string) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		r := make([]any, len(row))
		for j, v := range row {
			if v != "" {
				r[j] = v
			}
		}
		out[i] = r
	}
	return out
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
