package fieldtype

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerce_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		tag  Tag
		raw  string
		want any
	}{
		{"int zero", Int, "0", int64(0)},
		{"int negative", Int, "-1", int64(-1)},
		{"int large", Int, "120", int64(120)},
		{"float zero", Float, "0", 0.0},
		{"float negative", Float, "-1", -1.0},
		{"float fraction", Float, "99.999", 99.999},
		{"bool true", Boolean, "true", true},
		{"bool title case", Boolean, "True", true},
		{"bool false", Boolean, "false", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Coerce(tt.tag, tt.raw, "")
			require.True(t, out.OK(), out.Reason)
			assert.Equal(t, tt.want, out.Value)
		})
	}
}

func TestCoerce_DecimalRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "-1", "99.999"} {
		out := Coerce(Decimal, s, "")
		require.True(t, out.OK())
		d, ok := out.Value.(decimal.Decimal)
		require.True(t, ok)
		assert.True(t, d.Equal(decimal.RequireFromString(s)), s)

		again := Coerce(Decimal, d.String(), "")
		assert.True(t, again.Value.(decimal.Decimal).Equal(d))
	}
}

func TestCoerce_BooleanTokens(t *testing.T) {
	for _, s := range []string{"true", "1", "t", "y", "YES"} {
		assert.Equal(t, true, Coerce(Boolean, s, "").Value, s)
	}
	for _, s := range []string{"false", "0", "f", "N", "no"} {
		assert.Equal(t, false, Coerce(Boolean, s, "").Value, s)
	}
	out := Coerce(Boolean, "maybe", "")
	assert.True(t, out.Failed)
	assert.Nil(t, out.Value)
}

func TestCoerce_FailureYieldsNil(t *testing.T) {
	out := Coerce(Int, "abc", "")
	assert.True(t, out.Failed)
	assert.Nil(t, out.Value)
	assert.Contains(t, out.Reason, "integer")

	assert.True(t, Coerce(Int, 3.5, "").Failed)
	assert.True(t, Coerce(Decimal, "1,5", "").Failed)
	assert.True(t, Coerce(Date, "2024-13-45", "").Failed)
}

func TestCoerce_FloatRejectsNonFinite(t *testing.T) {
	for _, raw := range []any{"NaN", "Inf", "-inf", math.NaN(), math.Inf(1)} {
		out := Coerce(Float, raw, "")
		assert.True(t, out.Failed, "%v", raw)
		assert.Nil(t, out.Value)
	}
	assert.Equal(t, 1.5, Coerce(Float, "1.5", "").Value)
}

func TestWithinPlaces(t *testing.T) {
	out := WithinPlaces(Coerce(Decimal, "1.234", ""), 2)
	assert.True(t, out.Failed)
	assert.Nil(t, out.Value)
	assert.Equal(t, "Maximum 2 decimal places allowed", out.Reason)

	assert.False(t, WithinPlaces(Coerce(Decimal, "1.23", ""), 2).Failed)
	assert.False(t, WithinPlaces(Coerce(Decimal, "7", ""), 0).Failed)
	assert.Equal(t, Outcome{}, WithinPlaces(Coerce(Decimal, nil, ""), 2))
	assert.True(t, WithinPlaces(Coerce(Decimal, "x", ""), 2).Failed)
}

func TestCoerce_NullAndEmpty(t *testing.T) {
	assert.Equal(t, Outcome{}, Coerce(Int, nil, ""))
	assert.Equal(t, Outcome{}, Coerce(Date, "  ", ""))
	assert.Equal(t, "", Coerce(Text, "", "").Value)
}

func TestCoerce_JSONNumbers(t *testing.T) {
	assert.Equal(t, int64(30), Coerce(Int, float64(30), "").Value)
	assert.Equal(t, "30", Coerce(Varchar, float64(30), "").Value)
	assert.Equal(t, true, Coerce(Boolean, float64(1), "").Value)

	assert.Equal(t, int64(30), Coerce(Int, json.Number("30.0"), "").Value)
	assert.True(t, Coerce(Int, json.Number("30.5"), "").Failed)
	assert.Equal(t, "30.0", Coerce(Varchar, json.Number("30.0"), "").Value)
	d := Coerce(Decimal, json.Number("12345678901234567.89"), "").Value.(decimal.Decimal)
	assert.Equal(t, "12345678901234567.89", d.String())
}

func TestCoerce_DateOrder(t *testing.T) {
	// month-first wins when both readings are valid
	out := Coerce(Date, "03/04/2024", "")
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), out.Value)

	// day-first fallback when month-first is impossible
	out = Coerce(Date, "25/12/2024", "")
	assert.Equal(t, time.Date(2024, 12, 25, 0, 0, 0, 0, time.UTC), out.Value)

	out = Coerce(Date, "2024-01-31", "")
	assert.Equal(t, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC), out.Value)

	// an explicit rule format takes precedence
	out = Coerce(Date, "03/04/2024", "DD/MM/YYYY")
	assert.Equal(t, time.Date(2024, 4, 3, 0, 0, 0, 0, time.UTC), out.Value)
}

func TestCoerce_DateTime(t *testing.T) {
	cases := map[string]time.Time{
		"2024-05-06 07:08:09": time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC),
		"2024-05-06 07:08":    time.Date(2024, 5, 6, 7, 8, 0, 0, time.UTC),
		"2024-05-06":          time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC),
		"06/05/2024 07:08:09": time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC),
		"06/05/2024":          time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC),
	}
	for raw, want := range cases {
		out := Coerce(DateTime, raw, "")
		require.True(t, out.OK(), raw)
		assert.Equal(t, want, out.Value, raw)
	}
}

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
