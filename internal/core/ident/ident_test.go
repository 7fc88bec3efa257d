package ident

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sage/internal/core/apperror"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"simple", "price", true},
		{"underscore prefix", "_internal", true},
		{"mixed case and digits", "Unit2Price", true},
		{"empty", "", false},
		{"leading digit", "1st", false},
		{"space", "unit price", false},
		{"semicolon", "a;drop", false},
		{"double quote", `a"b`, false},
		{"single quote", "a'b", false},
		{"dash", "unit-price", false},
		{"too long", "a234567890123456789012345678901234567890123456789012345678901234", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate("field name", tt.input)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperror.HasCode(err, apperror.CodeInvalidIdent))
		})
	}
}

func TestQuote(t *testing.T) {
	assert.Equal(t, `"order"`, Quote("order"))
	assert.Equal(t, []string{`"a"`, `"B"`}, QuoteAll([]string{"a", "B"}))
	assert.True(t, IsReserved("ORDER"))
	assert.False(t, IsReserved("price"))
}

func TestTableNameAndLiteral(t *testing.T) {
	assert.Equal(t, "product_42", TableName(42))
	assert.Equal(t, "'O''Brien'", Literal("O'Brien"))
}
