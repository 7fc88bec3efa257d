package fieldtype

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Constraints are the rule-derived limits applied by Check.
// Nil pointers and zero values disable the matching check; the caller is
// responsible for honoring rule flags before filling them in.
type Constraints struct {
	MaxLength   int
	Min         *float64
	Max         *float64
	MaxDecimals *int
	DateFormat  string
	MaxAgeDays  *int
	Email       bool
	Phone       bool

	// Now anchors max-age checks. Zero means time.Now().
	Now time.Time
}

var (
	emailRe = regexp.MustCompile(`^\S+@\S+\.\S+`)
	phoneRe = regexp.MustCompile(`^\+?[0-9][0-9 ()\-.]{5,18}[0-9]$`)
)

// Check inspects the string form of a value against the type and constraints
// and returns every violated message. It never coerces or mutates.
func Check(t Tag, raw string, c Constraints) []string {
	var errs []string

	switch {
	case t.Textual():
		if c.MaxLength > 0 && utf8.RuneCountInString(raw) > c.MaxLength {
			errs = append(errs, fmt.Sprintf("Exceeds maximum length of %d", c.MaxLength))
		}
		if c.Email && !emailRe.MatchString(raw) {
			errs = append(errs, "Invalid email format")
		}
		if c.Phone && !phoneRe.MatchString(strings.TrimSpace(raw)) {
			errs = append(errs, "Invalid phone format")
		}

	case t == Int:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return append(errs, "Must be an integer")
		}
		errs = append(errs, checkBounds(decimal.NewFromInt(n), c)...)

	case t == Float:
		f, err := ParseFloat(raw)
		if err != nil {
			return append(errs, "Must be a number")
		}
		errs = append(errs, checkBounds(decimal.NewFromFloat(f), c)...)

	case t == Decimal:
		d, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			return append(errs, "Must be a valid decimal number")
		}
		if c.MaxDecimals != nil && DecimalPlaces(d) > *c.MaxDecimals {
			errs = append(errs, fmt.Sprintf("Maximum %d decimal places allowed", *c.MaxDecimals))
		}
		errs = append(errs, checkBounds(d, c)...)

	case t == Boolean:
		if _, err := ParseBool(raw); err != nil {
			errs = append(errs, "Must be a boolean ("+BooleanTokens+")")
		}

	case t == Date:
		d, err := ParseDate(raw, c.DateFormat)
		if err != nil {
			return append(errs, "Invalid date format. Date format must be: "+displayFormat(c.DateFormat))
		}
		errs = append(errs, checkAge(d, c)...)

	case t == DateTime:
		d, err := ParseDateTime(raw)
		if err != nil {
			return append(errs, "Invalid datetime format. Expected YYYY-MM-DD HH:MM:SS or DD/MM/YYYY HH:MM:SS")
		}
		errs = append(errs, checkAge(d, c)...)
	}

	return errs
}

// DecimalPlaces counts the digits after the decimal point as written.
func DecimalPlaces(d decimal.Decimal) int {
	if exp := d.Exponent(); exp < 0 {
		return int(-exp)
	}
	return 0
}

// FormatBound renders a numeric bound the way it appears in messages and DDL.
func FormatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func checkBounds(v decimal.Decimal, c Constraints) []string {
	var errs []string
	if c.Min != nil && v.LessThan(decimal.NewFromFloat(*c.Min)) {
		errs = append(errs, "Value must be >= "+FormatBound(*c.Min))
	}
	if c.Max != nil && v.GreaterThan(decimal.NewFromFloat(*c.Max)) {
		errs = append(errs, "Value must be <= "+FormatBound(*c.Max))
	}
	return errs
}

func checkAge(d time.Time, c Constraints) []string {
	if c.MaxAgeDays == nil {
		return nil
	}
	now := c.Now
	if now.IsZero() {
		now = time.Now()
	}
	limit := truncateDay(now).AddDate(0, 0, -*c.MaxAgeDays)
	if d.Before(limit) {
		return []string{fmt.Sprintf("Date must not be older than %d days", *c.MaxAgeDays)}
	}
	return nil
}

func displayFormat(format string) string {
	if _, ok := DateLayout(format); ok {
		return strings.ToUpper(strings.TrimSpace(format))
	}
	return "YYYY-MM-DD, MM/DD/YYYY or DD/MM/YYYY"
}
