package fieldtype

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func f64(v float64) *float64 { return &v }

func TestCheck_Text(t *testing.T) {
	assert.Equal(t, []string{"Exceeds maximum length of 5"}, Check(Varchar, "Alexander", Constraints{MaxLength: 5}))
	assert.Empty(t, Check(Varchar, "Alex", Constraints{MaxLength: 5}))
	assert.Equal(t, []string{"Invalid email format"}, Check(Text, "nobody", Constraints{Email: true}))
	assert.Empty(t, Check(Text, "a@b.io", Constraints{Email: true}))
	assert.Empty(t, Check(Varchar, "+1 (555) 010-2030", Constraints{Phone: true}))
	assert.Equal(t, []string{"Invalid phone format"}, Check(Varchar, "call me", Constraints{Phone: true}))
}

func TestCheck_Integer(t *testing.T) {
	c := Constraints{Min: f64(0), Max: f64(120)}
	assert.Equal(t, []string{"Value must be <= 120"}, Check(Int, "200", c))
	assert.Equal(t, []string{"Value must be >= 0"}, Check(Int, "-1", c))
	assert.Empty(t, Check(Int, "0", c))
	assert.Equal(t, []string{"Must be an integer"}, Check(Int, "12.5", c))
}

func TestCheck_Decimal(t *testing.T) {
	c := Constraints{MaxDecimals: intp(2), Max: f64(100)}
	assert.Equal(t, []string{"Maximum 2 decimal places allowed"}, Check(Decimal, "1.234", c))
	assert.Empty(t, Check(Decimal, "1.23", c))
	assert.Empty(t, Check(Decimal, "12345", Constraints{MaxDecimals: intp(2)}))
	assert.Equal(t, []string{"Maximum 2 decimal places allowed", "Value must be <= 100"}, Check(Decimal, "100.001", c))
	assert.Equal(t, []string{"Must be a valid decimal number"}, Check(Decimal, "ten", c))
}

func TestCheck_FloatRejectsNonFinite(t *testing.T) {
	c := Constraints{Min: f64(0)}
	for _, s := range []string{"NaN", "nan", "Inf", "+Inf", "-Infinity", "1e400"} {
		assert.Equal(t, []string{"Must be a number"}, Check(Float, s, c), s)
	}
	assert.Empty(t, Check(Float, "2.5", c))
	assert.Equal(t, []string{"Must be a valid decimal number"}, Check(Decimal, "NaN", Constraints{}))
}

func TestCheck_Boolean(t *testing.T) {
	for _, s := range []string{"true", "FALSE", "0", "1", "yes", "n"} {
		assert.Empty(t, Check(Boolean, s, Constraints{}), s)
	}
	assert.Len(t, Check(Boolean, "perhaps", Constraints{}), 1)
}

func TestCheck_Date(t *testing.T) {
	assert.Empty(t, Check(Date, "2024-02-29", Constraints{}))
	assert.Empty(t, Check(Date, "31/01/2024", Constraints{}))
	assert.Equal(t,
		[]string{"Invalid date format. Date format must be: DD/MM/YYYY"},
		Check(Date, "2024-01-31", Constraints{DateFormat: "DD/MM/YYYY"}))

	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	c := Constraints{MaxAgeDays: intp(30), Now: now}
	assert.Empty(t, Check(Date, "2024-06-15", c))
	assert.Equal(t, []string{"Date must not be older than 30 days"}, Check(Date, "2024-01-01", c))
}

func TestCheck_UnknownTagBehavesAsText(t *testing.T) {
	assert.Empty(t, Check(Tag("json"), "{}", Constraints{}))
}

func TestDecimalPlaces(t *testing.T) {
	assert.Equal(t, 3, DecimalPlaces(mustDecimal("99.999")))
	assert.Equal(t, 2, DecimalPlaces(mustDecimal("1.50")))
	assert.Equal(t, 0, DecimalPlaces(mustDecimal("42")))
}
