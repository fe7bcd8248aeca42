// Package middleware provides observability middleware for the flag service.
//
// Metrics collects Prometheus metrics for API requests and, through
// InstrumentStore, for store mutations and listener notifications.
// OpenTelemetry traces each request through the global tracer provider.
//
// Both return standard func(http.Handler) http.Handler middleware, so they
// compose with chi or any other router:
//
//	handler := middleware.Metrics()(
//	    middleware.OpenTelemetry()(srv.Handler()),
//	)
package middleware
