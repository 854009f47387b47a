package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tidelang/tide/ext"
	"github.com/tidelang/tide/job"
)

// meterName is the instrumentation scope name for engine-level metrics.
const meterName = "github.com/tidelang/tide/observability"

// Compile-time interface checks.
var (
	_ ext.Extension   = (*MetricsExtension)(nil)
	_ ext.JobQueued   = (*MetricsExtension)(nil)
	_ ext.JobCompiled = (*MetricsExtension)(nil)
	_ ext.JobFailed   = (*MetricsExtension)(nil)
	_ ext.JobRetrying = (*MetricsExtension)(nil)
	_ ext.CacheHit    = (*MetricsExtension)(nil)
)

// MetricsExtension records engine-wide lifecycle metrics via OpenTelemetry.
// Register it as an engine extension to automatically track queue rates,
// compile counts and times, failure rates by kind, retries and cache hits.
type MetricsExtension struct {
	queued      metric.Int64Counter
	compiled    metric.Int64Counter
	failed      metric.Int64Counter
	retried     metric.Int64Counter
	cacheHits   metric.Int64Counter
	compileTime metric.Float64Histogram
}

// NewMetricsExtension creates a MetricsExtension using the global
// MeterProvider. Without a configured provider the instruments are noop.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the provided
// meter. Use this variant to inject a specific MeterProvider for testing.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	m := &MetricsExtension{}
	// On error the OTel API returns noop instruments, so the extension
	// degrades gracefully.
	m.queued, _ = meter.Int64Counter("tide.job.queued",
		metric.WithDescription("Total compile jobs accepted by the engine"),
		metric.WithUnit("{job}"))
	m.compiled, _ = meter.Int64Counter("tide.job.compiled",
		metric.WithDescription("Total compile jobs finished successfully"),
		metric.WithUnit("{job}"))
	m.failed, _ = meter.Int64Counter("tide.job.failed",
		metric.WithDescription("Total compile jobs failed terminally"),
		metric.WithUnit("{job}"))
	m.retried, _ = meter.Int64Counter("tide.job.retried",
		metric.WithDescription("Total compile job retry attempts"),
		metric.WithUnit("{attempt}"))
	m.cacheHits, _ = meter.Int64Counter("tide.cache.hits",
		metric.WithDescription("Total units satisfied from the compilation cache"),
		metric.WithUnit("{hit}"))
	m.compileTime, _ = meter.Float64Histogram("tide.job.compile_time",
		metric.WithDescription("End-to-end compile time per job in seconds"),
		metric.WithUnit("s"))
	return m
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnJobQueued implements ext.JobQueued.
func (m *MetricsExtension) OnJobQueued(ctx context.Context, _ *job.Job) error {
	m.queued.Add(ctx, 1)
	return nil
}

// OnJobCompiled implements ext.JobCompiled.
func (m *MetricsExtension) OnJobCompiled(ctx context.Context, _ *job.Job, elapsed time.Duration) error {
	m.compiled.Add(ctx, 1)
	m.compileTime.Record(ctx, elapsed.Seconds())
	return nil
}

// OnJobFailed implements ext.JobFailed.
func (m *MetricsExtension) OnJobFailed(ctx context.Context, _ *job.Job, failure *job.Failure) error {
	kind := "unknown"
	if failure != nil {
		kind = failure.Kind.String()
	}
	m.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	return nil
}

// OnJobRetrying implements ext.JobRetrying.
func (m *MetricsExtension) OnJobRetrying(ctx context.Context, _ *job.Job, _ int, _ time.Duration) error {
	m.retried.Add(ctx, 1)
	return nil
}

// OnCacheHit implements ext.CacheHit.
func (m *MetricsExtension) OnCacheHit(ctx context.Context, _ *job.Job) error {
	m.cacheHits.Add(ctx, 1)
	return nil
}
