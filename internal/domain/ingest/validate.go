// Package ingest validates and stores rows of a materialized product.
package ingest

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"sage/internal/core/fieldtype"
	"sage/internal/domain/notify"
	"sage/internal/domain/schema"
)

// FieldError is one problem found in an upload. Row 0 is the header row.
type FieldError struct {
	Row   int    `json:"row"`
	Field string `json:"field"`
	Error string `json:"error"`
}

const msgRequired = "This field is required"

var annotationRe = regexp.MustCompile(`\(.*?\)|\[.*?\]`)

// NormalizeHeader drops "(…)" and "[…]" annotations that templates add to headers.
func NormalizeHeader(h string) string {
	return strings.TrimSpace(annotationRe.ReplaceAllString(h, ""))
}

// Validator inspects raw rows against field rules without coercing them.
type Validator struct {
	expr *Expressions
	now  func() time.Time
}

func NewValidator(expr *Expressions) *Validator {
	return &Validator{expr: expr, now: time.Now}
}

// ValidateRows checks rows against fields and returns every problem found.
// headers name the columns of rows; when empty, rows are positional in
// field order. Data rows are numbered from 1.
func (v *Validator) ValidateRows(headers []string, rows [][]any, fields []*schema.Field) []FieldError {
	var errs []FieldError

	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f.Name] = true
	}

	pos := make(map[string]int, len(fields))
	if len(headers) == 0 {
		for i, f := range fields {
			pos[f.Name] = i
		}
	} else {
		for i, h := range headers {
			name := NormalizeHeader(h)
			if !known[name] {
				errs = append(errs, FieldError{Row: 0, Field: name, Error: "Unexpected column header: " + name})
				continue
			}
			if _, dup := pos[name]; !dup {
				pos[name] = i
			}
		}
	}

	now := v.now()
	seen := map[string]map[string]int{}
	for i, row := range rows {
		rowNo := i + 1
		for _, f := range fields {
			var raw any
			if idx, ok := pos[f.Name]; ok && idx < len(row) {
				raw = row[idx]
			}
			for _, msg := range v.checkField(f, raw, now) {
				errs = append(errs, FieldError{Row: rowNo, Field: f.Name, Error: msg})
			}
			if f.Rule != nil && f.Rule.IsUnique && !blank(raw) {
				key := fieldtype.Stringify(raw)
				if seen[f.Name] == nil {
					seen[f.Name] = map[string]int{}
				}
				if first, dup := seen[f.Name][key]; dup {
					errs = append(errs, FieldError{Row: rowNo, Field: f.Name,
						Error: fmt.Sprintf("Duplicate value '%s' (first seen in row %d)", key, first)})
				} else {
					seen[f.Name][key] = rowNo
				}
			}
		}
	}
	return errs
}

// ValidateRecords is ValidateRows for rows keyed by column name.
func (v *Validator) ValidateRecords(records []map[string]any, fields []*schema.Field) []FieldError {
	headers, rows := Tabulate(records)
	if len(headers) == 0 {
		headers = make([]string, 0, len(fields))
		for _, f := range fields {
			headers = append(headers, f.Name)
		}
	}
	return v.ValidateRows(headers, rows, fields)
}

// Tabulate turns keyed records into sorted headers and positional rows.
func Tabulate(records []map[string]any) ([]string, [][]any) {
	set := map[string]struct{}{}
	for _, r := range records {
		for k := range r {
			set[k] = struct{}{}
		}
	}
	headers := make([]string, 0, len(set))
	for k := range set {
		headers = append(headers, k)
	}
	sort.Strings(headers)

	rows := make([][]any, len(records))
	for i, r := range records {
		row := make([]any, len(headers))
		for j, h := range headers {
			row[j] = r[h]
		}
		rows[i] = row
	}
	return headers, rows
}

func (v *Validator) checkField(f *schema.Field, raw any, now time.Time) (msgs []string) {
	defer func() {
		if r := recover(); r != nil {
			msgs = append(msgs, fmt.Sprintf("Unexpected validation error: %v", r))
		}
	}()

	if blank(raw) {
		if !f.IsNull {
			return []string{msgRequired}
		}
		return nil
	}

	s := fieldtype.Stringify(raw)
	msgs = fieldtype.Check(f.FieldType, s, f.Constraints(now))

	r := f.Rule
	if r == nil {
		return msgs
	}
	if r.IsPicklist && !r.InPicklist(s) {
		msgs = append(msgs, fmt.Sprintf("Value '%s' is not in picklist: %s", s, strings.Join(r.Picklist(), ", ")))
	}
	if r.CustomExpression != nil && *r.CustomExpression != "" && len(msgs) == 0 && v.expr != nil {
		out := fieldtype.Coerce(f.FieldType, raw, f.DateFormat())
		if out.OK() {
			pass, err := v.expr.Eval(*r.CustomExpression, out.Value)
			switch {
			case err != nil:
				msgs = append(msgs, "Custom validation error: "+err.Error())
			case !pass:
				msgs = append(msgs, "Failed custom validation: "+*r.CustomExpression)
			}
		}
	}
	return msgs
}

func blank(raw any) bool {
	if raw == nil {
		return true
	}
	s, ok := raw.(string)
	return ok && strings.TrimSpace(s) == ""
}

// problems converts field errors for the notifier.
func problems(errs []FieldError) []notify.Problem {
	out := make([]notify.Problem, len(errs))
	for i, e := range errs {
		out[i] = notify.Problem(e)
	}
	return out
}
