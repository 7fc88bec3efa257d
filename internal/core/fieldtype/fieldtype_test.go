package fieldtype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func intp(v int) *int { return &v }

func TestStorageFor(t *testing.T) {
	tests := []struct {
		tag  Tag
		want StorageType
	}{
		{Varchar, StorageVarchar},
		{Int, StorageInteger},
		{Float, StorageFloat},
		{Boolean, StorageBoolean},
		{Date, StorageDate},
		{DateTime, StorageTimestamp},
		{Text, StorageText},
		{Decimal, StorageDecimal},
		{Tag("uuid"), StorageText},
		{Tag(""), StorageText},
	}
	for _, tt := range tests {
		t.Run(string(tt.tag), func(t *testing.T) {
			assert.Equal(t, tt.want, StorageFor(tt.tag))
		})
	}
}

func TestColumnType(t *testing.T) {
	assert.Equal(t, "VARCHAR(50)", ColumnType(Varchar, intp(50), nil))
	assert.Equal(t, "VARCHAR", ColumnType(Varchar, nil, nil))
	assert.Equal(t, "DECIMAL(10, 0)", ColumnType(Decimal, nil, nil))
	assert.Equal(t, "DECIMAL(12, 2)", ColumnType(Decimal, intp(12), intp(2)))
	assert.Equal(t, "INTEGER", ColumnType(Int, intp(8), nil))
	assert.Equal(t, "TEXT", ColumnType(Tag("json"), intp(8), nil))
}

func TestParse(t *testing.T) {
	assert.Equal(t, Decimal, Parse(" Decimal "))
	assert.True(t, Parse("INT").Known())
	assert.False(t, Parse("money").Known())
	assert.True(t, Parse("money").Textual())
}
