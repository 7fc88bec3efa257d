package domain

import "context"

// Metrics records counters and histograms by name. attrs are key/value pairs.
// The infrastructure implementation exports them to Prometheus.
type Metrics interface {
	Count(ctx context.Context, name string, n int64, attrs ...string)
	Observe(ctx context.Context, name string, v float64, attrs ...string)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) Count(context.Context, string, int64, ...string)     {}
func (NopMetrics) Observe(context.Context, string, float64, ...string) {}

// Metric names shared by services and the exporter.
const (
	MetricMaterializations  = "sage_materializations_total"
	MetricDDLStatements     = "sage_ddl_statements_total"
	MetricMaterializeMillis = "sage_materialize_duration_ms"
	MetricRowsValidated     = "sage_rows_validated_total"
	MetricValidationErrors  = "sage_validation_errors_total"
	MetricRowsInserted      = "sage_rows_inserted_total"
	MetricCoercionLosses    = "sage_coercion_losses_total"
	MetricIngestFailures    = "sage_ingest_failures_total"
	MetricMatchRuns         = "sage_match_runs_total"
	MetricMatchesPersisted  = "sage_matches_persisted_total"
	MetricMatchScore        = "sage_match_score"
	MetricNotifications     = "sage_notifications_total"
	MetricHTTPRequestMillis = "sage_http_request_duration_ms"
	MetricDefinitionCache   = "sage_definition_cache_lookups_total"
	MetricPanics            = "sage_http_panics_total"
)
