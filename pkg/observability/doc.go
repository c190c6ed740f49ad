// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing, health probes and graceful shutdown for taskhub.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("workspace_id", id).Info("workspace created")
//
// The level can be changed at runtime with SetLevel, which the config file
// watcher uses for hot reload.
//
// Request-scoped logging:
//
//	observability.FromContext(ctx).WithError(err).Warn("prediction enrichment failed")
//
// # Prometheus Metrics
//
// NewMetrics registers every collector on the given registry. Record methods
// are safe to call on a nil *Metrics so domain packages can run without
// metrics in tests.
//
// # Health
//
// HealthChecker exposes /health/live and /health/ready probes that check the
// database and, when configured, Redis.
package observability
