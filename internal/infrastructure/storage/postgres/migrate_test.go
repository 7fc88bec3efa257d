package postgres

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations_Embedded(t *testing.T) {
	ms, err := LoadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, ms)

	for i := 1; i < len(ms); i++ {
		assert.Less(t, ms[i-1].Version, ms[i].Version)
	}
	assert.Contains(t, ms[0].Up, "CREATE TABLE products")
	for _, m := range ms {
		assert.NotContains(t, m.Up, "DROP TABLE", m.Name)
	}
}

func TestLoadMigrations_OrdersAndSplits(t *testing.T) {
	fsys := fstest.MapFS{
		"m/00002_b.sql": {Data: []byte("-- +goose Up\nCREATE TABLE b ();\n-- +goose Down\nDROP TABLE b;\n")},
		"m/00001_a.sql": {Data: []byte("CREATE TABLE a ();")},
		"m/README.md":   {Data: []byte("ignored")},
	}

	ms, err := loadMigrations(fsys, "m")
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, int64(1), ms[0].Version)
	assert.Equal(t, "CREATE TABLE a ();", ms[0].Up)
	assert.Equal(t, "CREATE TABLE b ();", ms[1].Up)
}

func TestLoadMigrations_RejectsBadNames(t *testing.T) {
	fsys := fstest.MapFS{"m/init.sql": {Data: []byte("SELECT 1")}}
	_, err := loadMigrations(fsys, "m")
	assert.Error(t, err)
}
