package fieldtype

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Outcome is the result of coercing one raw value.
// A failed outcome always has a nil Value and a Reason.
type Outcome struct {
	Value  any
	Failed bool
	Reason string
}

// OK reports whether coercion succeeded (a null input is a success).
func (o Outcome) OK() bool { return !o.Failed }

func ok(v any) Outcome { return Outcome{Value: v} }

func fail(format string, args ...any) Outcome {
	return Outcome{Failed: true, Reason: fmt.Sprintf(format, args...)}
}

var (
	trueTokens  = map[string]struct{}{"true": {}, "1": {}, "t": {}, "y": {}, "yes": {}}
	falseTokens = map[string]struct{}{"false": {}, "0": {}, "f": {}, "n": {}, "no": {}}
)

// BooleanTokens lists the accepted spellings, used in error messages.
const BooleanTokens = "true/false, 1/0, t/f, y/n, yes/no"

// DateLayouts are tried in order when no explicit date format is configured.
// Layouts use non-padded month/day so both "3/7/2024" and "03/07/2024" parse.
var DateLayouts = []string{"1/2/2006", "2006-1-2", "2/1/2006"}

// DateTimeLayouts are tried in order for datetime fields.
var DateTimeLayouts = []string{
	"2006-1-2 15:04:05",
	"2006-1-2 15:04",
	"2006-1-2",
	"2/1/2006 15:04:05",
	"2/1/2006",
}

var dateFormats = map[string]string{
	"MM/DD/YYYY": "1/2/2006",
	"DD/MM/YYYY": "2/1/2006",
	"YYYY-MM-DD": "2006-1-2",
	"MM-DD-YYYY": "1-2-2006",
	"DD-MM-YYYY": "2-1-2006",
}

// DateLayout translates a rule date format such as "DD/MM/YYYY" into a Go
// layout. ok is false for unrecognized formats.
func DateLayout(format string) (string, bool) {
	l, ok := dateFormats[strings.ToUpper(strings.TrimSpace(format))]
	return l, ok
}

// ParseBool applies the canonical boolean token set, case-insensitively.
func ParseBool(s string) (bool, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if _, ok := trueTokens[s]; ok {
		return true, nil
	}
	if _, ok := falseTokens[s]; ok {
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}

// ParseDate tries the configured format first (when recognized), then the
// default layouts. The first layout that parses wins.
func ParseDate(s, format string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if l, ok := DateLayout(format); ok {
		return time.Parse(l, s)
	}
	return parseFirst(s, DateLayouts)
}

// ParseDateTime tries DateTimeLayouts in order.
func ParseDateTime(s string) (time.Time, error) {
	return parseFirst(strings.TrimSpace(s), DateTimeLayouts)
}

func parseFirst(s string, layouts []string) (time.Time, error) {
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

var errFractional = errors.New("fractional value")

// Coerce converts raw into the Go value bound for t's column.
//
// raw may be nil, a string, a bool, any Go number or an already-typed value
// (time.Time, decimal.Decimal). Nil stays nil. Empty strings are null for
// every non-text type. dateFormat is the field's rule format and may be empty.
func Coerce(t Tag, raw any, dateFormat string) Outcome {
	if raw == nil {
		return ok(nil)
	}
	if t.Textual() {
		return ok(Stringify(raw))
	}
	if s, isStr := raw.(string); isStr && strings.TrimSpace(s) == "" {
		return ok(nil)
	}

	switch t {
	case Int:
		n, err := toInt(raw)
		if err != nil {
			return fail("cannot convert %v to integer", raw)
		}
		return ok(n)
	case Float:
		f, err := toFloat(raw)
		if err != nil {
			return fail("cannot convert %v to float", raw)
		}
		return ok(f)
	case Decimal:
		d, err := toDecimal(raw)
		if err != nil {
			return fail("cannot convert %v to decimal", raw)
		}
		return ok(d)
	case Boolean:
		b, err := toBool(raw)
		if err != nil {
			return fail("cannot convert %v to boolean", raw)
		}
		return ok(b)
	case Date:
		if tm, isTime := raw.(time.Time); isTime {
			return ok(truncateDay(tm))
		}
		tm, err := ParseDate(Stringify(raw), dateFormat)
		if err != nil {
			return fail("cannot convert %v to date", raw)
		}
		return ok(tm)
	case DateTime:
		if tm, isTime := raw.(time.Time); isTime {
			return ok(tm)
		}
		tm, err := ParseDateTime(Stringify(raw))
		if err != nil {
			return fail("cannot convert %v to datetime", raw)
		}
		return ok(tm)
	}
	return ok(Stringify(raw))
}

// WithinPlaces fails a decimal outcome that carries more than places
// fractional digits as written. Other outcomes pass through.
func WithinPlaces(o Outcome, places int) Outcome {
	d, isDec := o.Value.(decimal.Decimal)
	if o.Failed || !isDec || DecimalPlaces(d) <= places {
		return o
	}
	return fail("Maximum %d decimal places allowed", places)
}

// Stringify renders a raw cell the way a user would have typed it.
func Stringify(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 && v.Nanosecond() == 0 {
			return v.Format("2006-01-02")
		}
		return v.Format("2006-01-02 15:04:05")
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(raw)
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func toInt(raw any) (int64, error) {
	switch v := raw.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
			return 0, errFractional
		}
		return int64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case decimal.Decimal:
		if !v.IsInteger() {
			return 0, errFractional
		}
		return v.IntPart(), nil
	}
	s := strings.TrimSpace(Stringify(raw))
	n, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return n, nil
	}
	// JSON numbers such as 30.0 arrive as text.
	if _, isNum := raw.(json.Number); isNum {
		if d, derr := decimal.NewFromString(s); derr == nil && d.IsInteger() {
			return d.IntPart(), nil
		}
	}
	return 0, err
}

var errNotFinite = errors.New("not a finite number")

func toFloat(raw any) (float64, error) {
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case decimal.Decimal:
		return v.InexactFloat64(), nil
	default:
		var err error
		if f, err = ParseFloat(Stringify(raw)); err != nil {
			return 0, err
		}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotFinite
	}
	return f, nil
}

// ParseFloat parses s as a finite float. NaN and infinities are rejected.
func ParseFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotFinite
	}
	return f, nil
}

func toDecimal(raw any) (decimal.Decimal, error) {
	switch v := raw.(type) {
	case decimal.Decimal:
		return v, nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		return decimal.NewFromString(strconv.FormatFloat(v, 'f', -1, 64))
	}
	return decimal.NewFromString(strings.TrimSpace(Stringify(raw)))
}

func toBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case float64:
		if v == 0 || v == 1 {
			return v == 1, nil
		}
		return false, fmt.Errorf("not a boolean: %v", v)
	case int:
		if v == 0 || v == 1 {
			return v == 1, nil
		}
		return false, fmt.Errorf("not a boolean: %v", v)
	}
	return ParseBool(Stringify(raw))
}
