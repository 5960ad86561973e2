// Package observability provides structured logging, Prometheus metrics,
// health probes, optional OTLP tracing and graceful shutdown shared by all
// four services.
package observability
