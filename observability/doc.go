// Package observability provides an OpenTelemetry-based metrics extension
// for the Tide compile engine. The MetricsExtension implements lifecycle
// hooks to record engine-wide counters for job queueing, compilation,
// failure by kind, retries and cache hits.
//
// For per-phase tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
