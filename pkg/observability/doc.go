// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing and health checks for the ACL service.
//
// # Structured Logging
//
//	log := observability.NewLogger("info", os.Stdout)
//	observability.FromContext(ctx, log).WithField("scope", "Lead").Info("denied")
//
// # Metrics
//
// Metrics records access decisions and permission table cache activity. It
// implements acl.DecisionRecorder and table.Metrics:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	manager := acl.NewManager(factory, registry, acl.WithDecisionRecorder(metrics))
//
// OTelMetrics records the same events through the OpenTelemetry meter;
// Recorders fans out to both.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(conns.HealthCheck, redisClient, version)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/middleware: Request logging middleware
package observability
