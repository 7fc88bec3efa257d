package monitoring

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sage/internal/domain"
)

type fakePool struct{}

func (fakePool) Stats() (int32, int32, int32) { return 5, 2, 3 }

func scrape(t *testing.T, p *Provider) string {
	t.Helper()
	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestProvider_CountAndObserve(t *testing.T) {
	p, err := New(DefaultConfig("sage-test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	ctx := context.Background()
	p.Count(ctx, domain.MetricRowsInserted, 3, "product", "people")
	p.Count(ctx, domain.MetricRowsInserted, 2, "product", "people")
	p.Observe(ctx, domain.MetricMaterializeMillis, 42, "product", "people", "dangling")

	body := scrape(t, p)
	assert.Contains(t, body, `sage_rows_inserted_total{`)
	assert.Contains(t, body, `product="people"`)
	assert.Contains(t, body, "sage_materialize_duration_ms_bucket")
	assert.NotContains(t, body, "dangling")
}

func TestProvider_ObservePool(t *testing.T) {
	p, err := New(DefaultConfig("sage-test"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	require.NoError(t, p.ObservePool(fakePool{}))
	body := scrape(t, p)
	assert.Contains(t, body, `sage_db_pool_connections{`)
	assert.Contains(t, body, `state="acquired"`)
}

func TestToAttributes(t *testing.T) {
	attrs := toAttributes([]string{"a", "1", "b"})
	require.Len(t, attrs, 1)
	assert.Equal(t, "a", string(attrs[0].Key))
	assert.Equal(t, "1", attrs[0].Value.AsString())
}
