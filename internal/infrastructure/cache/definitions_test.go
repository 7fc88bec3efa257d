package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sage/internal/core/apperror"
	"sage/internal/domain/schema"
)

type countingLoader struct {
	products int
	fields   int
	// duringFields runs inside Fields, between the two reads of a load.
	duringFields func()
}

func (l *countingLoader) GetProduct(_ context.Context, id int64) (*schema.Product, error) {
	l.products++
	if id == 404 {
		return nil, apperror.NewNotFound("product", id)
	}
	return &schema.Product{ID: id, SchemaName: "Widgets"}, nil
}

func (l *countingLoader) Fields(_ context.Context, id int64) ([]*schema.Field, error) {
	l.fields++
	if l.duringFields != nil {
		l.duringFields()
	}
	return []*schema.Field{{ID: 1, ProductID: id, Name: "sku"}}, nil
}

func newTestCache(l Loader) (*DefinitionCache, *time.Time) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewDefinitionCache(l, nil, time.Minute, nil)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestDefinitionCache_ServesFromCache(t *testing.T) {
	l := &countingLoader{}
	c, _ := newTestCache(l)
	ctx := context.Background()

	p, err := c.GetProduct(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Widgets", p.SchemaName)

	fields, err := c.Fields(ctx, 7)
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "sku", fields[0].Name)

	assert.Equal(t, 1, l.products)
	assert.Equal(t, 1, l.fields)
	assert.Equal(t, 1, c.Len())
}

func TestDefinitionCache_ReturnsCopies(t *testing.T) {
	c, _ := newTestCache(&countingLoader{})
	ctx := context.Background()

	p, err := c.GetProduct(ctx, 7)
	require.NoError(t, err)
	p.SchemaName = "changed"
	fields, err := c.Fields(ctx, 7)
	require.NoError(t, err)
	fields[0] = nil

	p, err = c.GetProduct(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Widgets", p.SchemaName)
	fields, err = c.Fields(ctx, 7)
	require.NoError(t, err)
	assert.NotNil(t, fields[0])
}

func TestDefinitionCache_EvictionDuringLoadIsNotStored(t *testing.T) {
	for name, evict := range map[string]func(c *DefinitionCache){
		"one":   func(c *DefinitionCache) { c.Invalidate(7) },
		"other": func(c *DefinitionCache) { c.Invalidate(8) },
		"all":   func(c *DefinitionCache) { c.InvalidateAll() },
	} {
		t.Run(name, func(t *testing.T) {
			l := &countingLoader{}
			c, _ := newTestCache(l)
			ctx := context.Background()
			l.duringFields = func() { evict(c) }

			p, err := c.GetProduct(ctx, 7)
			require.NoError(t, err)
			assert.Equal(t, "Widgets", p.SchemaName)
			assert.Equal(t, 0, c.Len())

			l.duringFields = nil
			_, err = c.GetProduct(ctx, 7)
			require.NoError(t, err)
			assert.Equal(t, 2, l.products)
			assert.Equal(t, 1, c.Len())
		})
	}
}

func TestDefinitionCache_ExpiresAfterTTL(t *testing.T) {
	l := &countingLoader{}
	c, now := newTestCache(l)
	ctx := context.Background()

	_, err := c.GetProduct(ctx, 7)
	require.NoError(t, err)
	*now = now.Add(2 * time.Minute)
	_, err = c.GetProduct(ctx, 7)
	require.NoError(t, err)

	assert.Equal(t, 2, l.products)
}

func TestDefinitionCache_DoesNotCacheErrors(t *testing.T) {
	l := &countingLoader{}
	c, _ := newTestCache(l)

	_, err := c.GetProduct(context.Background(), 404)
	assert.True(t, apperror.IsNotFound(err))
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, l.fields)
}

func TestDefinitionCache_HandlePayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		left    int
		evicted int64
	}{
		{"product id evicts one", "7", 1, 7},
		{"empty payload drops all", "", 0, 0},
		{"garbage drops all", "abc", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCache(&countingLoader{})
			ctx := context.Background()
			_, _ = c.GetProduct(ctx, 7)
			_, _ = c.GetProduct(ctx, 8)

			var got []int64
			c.OnInvalidation(func(id int64) { got = append(got, id) })
			c.handlePayload(tt.payload)

			assert.Equal(t, tt.left, c.Len())
			assert.Equal(t, []int64{tt.evicted}, got)
		})
	}
}

func TestDefinitionCache_ListenerPanicIsContained(t *testing.T) {
	c, _ := newTestCache(&countingLoader{})
	called := false
	c.OnInvalidation(func(int64) { panic("boom") })
	c.OnInvalidation(func(int64) { called = true })

	assert.NotPanics(t, func() { c.Invalidate(1) })
	assert.True(t, called)
}

func TestDefinitionCache_StartWithoutPoolIsNoop(t *testing.T) {
	c, _ := newTestCache(&countingLoader{})
	c.Start(context.Background())
	c.Stop()
	assert.False(t, c.started)
}
