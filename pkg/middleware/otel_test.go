package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func TestOpenTelemetryMiddleware_InjectsSpanContext(t *testing.T) {
	extractorCalled := false
	mw := OpenTelemetry(
		WithTracerName("test-tracer"),
		WithAttributeExtractor(func(r *http.Request) []attribute.KeyValue {
			extractorCalled = true
			return []attribute.KeyValue{attribute.String("test.attr", "ok")}
		}),
	)

	handlerCalled := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		// The span context must be available to handlers. With the
		// default noop provider the span is non-recording but present.
		_ = trace.SpanFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/flags", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !handlerCalled {
		t.Fatal("expected handler to be called")
	}
	if !extractorCalled {
		t.Fatal("expected attribute extractor to be called")
	}
}

func TestOpenTelemetryMiddleware_FilterSkipsTracing(t *testing.T) {
	mw := OpenTelemetry(
		WithRequestFilter(func(r *http.Request) bool {
			return r.URL.Path != "/healthz"
		}),
	)

	handlerCalled := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !handlerCalled {
		t.Fatal("expected next to be called when filter skips tracing")
	}
}

func TestOpenTelemetryMiddleware_ErrorStatusStillServes(t *testing.T) {
	mw := OpenTelemetry()

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/flags", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 to propagate, got %d", rec.Code)
	}
}

func TestOTelConfigOptions(t *testing.T) {
	config := defaultOTelConfig()
	if config.TracerName != defaultTracerName {
		t.Errorf("TracerName=%q, want %q", config.TracerName, defaultTracerName)
	}

	WithTracerName("custom")(&config)
	if config.TracerName != "custom" {
		t.Errorf("TracerName=%q, want custom", config.TracerName)
	}

	WithRequestFilter(func(*http.Request) bool { return false })(&config)
	if config.Filter == nil {
		t.Error("expected Filter to be set")
	}
}
