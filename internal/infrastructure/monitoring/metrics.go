// Package monitoring exports the service's counters and histograms to
// Prometheus through the OpenTelemetry SDK.
package monitoring

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"sage/internal/domain"
	"sage/pkg/logger"
)

// Config holds exporter settings.
type Config struct {
	ServiceName string
	// MillisBuckets bound histograms whose name ends in "_ms".
	MillisBuckets []float64
	// ScoreBuckets bound histograms on the 0-100 confidence scale.
	ScoreBuckets []float64
}

// DefaultConfig returns the default configuration.
func DefaultConfig(serviceName string) Config {
	return Config{
		ServiceName:   serviceName,
		MillisBuckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		ScoreBuckets:  []float64{1, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
	}
}

// Provider implements domain.Metrics. Instruments are created on first use
// and cached by name.
type Provider struct {
	cfg      Config
	provider *sdkmetric.MeterProvider
	meter    metric.Meter
	handler  http.Handler

	counters   sync.Map // name -> metric.Int64Counter
	histograms sync.Map // name -> metric.Float64Histogram
}

var _ domain.Metrics = (*Provider)(nil)

// New builds a provider with its own Prometheus registry.
func New(cfg Config) (*Provider, error) {
	reg := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	return &Provider{
		cfg:      cfg,
		provider: mp,
		meter:    mp.Meter(cfg.ServiceName),
		handler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, nil
}

// Handler serves the Prometheus scrape endpoint.
func (p *Provider) Handler() http.Handler { return p.handler }

// Shutdown flushes and stops the provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.provider.Shutdown(ctx)
}

func (p *Provider) Count(ctx context.Context, name string, n int64, attrs ...string) {
	c, err := p.counter(name)
	if err != nil {
		logger.Warn(ctx, "metric instrument", "name", name, "error", err)
		return
	}
	c.Add(ctx, n, metric.WithAttributes(toAttributes(attrs)...))
}

func (p *Provider) Observe(ctx context.Context, name string, v float64, attrs ...string) {
	h, err := p.histogram(name)
	if err != nil {
		logger.Warn(ctx, "metric instrument", "name", name, "error", err)
		return
	}
	h.Record(ctx, v, metric.WithAttributes(toAttributes(attrs)...))
}

func (p *Provider) counter(name string) (metric.Int64Counter, error) {
	if c, ok := p.counters.Load(name); ok {
		return c.(metric.Int64Counter), nil
	}
	c, err := p.meter.Int64Counter(name)
	if err != nil {
		return nil, err
	}
	actual, _ := p.counters.LoadOrStore(name, c)
	return actual.(metric.Int64Counter), nil
}

func (p *Provider) histogram(name string) (metric.Float64Histogram, error) {
	if h, ok := p.histograms.Load(name); ok {
		return h.(metric.Float64Histogram), nil
	}
	var opts []metric.Float64HistogramOption
	switch {
	case strings.HasSuffix(name, "_ms") && len(p.cfg.MillisBuckets) > 0:
		opts = append(opts, metric.WithExplicitBucketBoundaries(p.cfg.MillisBuckets...))
	case name == domain.MetricMatchScore && len(p.cfg.ScoreBuckets) > 0:
		opts = append(opts, metric.WithExplicitBucketBoundaries(p.cfg.ScoreBuckets...))
	}
	h, err := p.meter.Float64Histogram(name, opts...)
	if err != nil {
		return nil, err
	}
	actual, _ := p.histograms.LoadOrStore(name, h)
	return actual.(metric.Float64Histogram), nil
}

// PoolStater reports connection pool usage.
type PoolStater interface {
	Stats() (total, acquired, idle int32)
}

// ObservePool exports the pool's connection counts on every scrape.
func (p *Provider) ObservePool(pool PoolStater) error {
	_, err := p.meter.Int64ObservableGauge("sage_db_pool_connections",
		metric.WithDescription("Database pool connections by state"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			total, acquired, idle := pool.Stats()
			o.Observe(int64(total), metric.WithAttributes(attribute.String("state", "total")))
			o.Observe(int64(acquired), metric.WithAttributes(attribute.String("state", "acquired")))
			o.Observe(int64(idle), metric.WithAttributes(attribute.String("state", "idle")))
			return nil
		}),
	)
	return err
}

// toAttributes pairs up key/value strings; an odd trailing key is dropped.
func toAttributes(kv []string) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, attribute.String(kv[i], kv[i+1]))
	}
	return out
}
