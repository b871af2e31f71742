// Package observability provides structured logging, Prometheus metrics,
// health probes, graceful shutdown and OpenTelemetry tracing for the ZIP
// receiver.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.ParseLogLevel("debug"), os.Stderr)
//	logger.WithField("delivery_id", id).Info("delivery accepted")
//
// Request-scoped logging picks up the request ID set by the httputil
// middleware:
//
//	observability.FromContext(r.Context(), logger).Warn("duplicate delivery")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	observability.RegisterMetricsEndpoint(mux, registry)
//
// Receiver metrics cover deliveries, events, callback errors and
// registrations; client metrics cover ZIP API calls and retries.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(client.Version, redisClient)
//	checker.AddCheck("subscription", true, func(ctx context.Context) error { ... })
//	observability.RegisterHealthRoutes(mux, checker)
//
// A failing critical check fails readiness with 503. Non-critical checks
// and Redis only degrade it.
//
// # Shutdown
//
//	sm := observability.NewShutdownManager(logger, healthServer, 30*time.Second)
//	sm.RegisterShutdownFunc("subscription", manager.Stop)
//	sm.WaitForShutdown(ctx)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "zeal-listener",
//	}, logger)
//	defer providers.Shutdown(ctx)
package observability
