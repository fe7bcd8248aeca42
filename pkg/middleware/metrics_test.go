package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/flagstream-dev/flagstream/pkg/flags"
)

func resetGlobalMetricsForTest() {
	globalMetricsMu.Lock()
	globalMetrics = nil
	globalMetricsMu.Unlock()
}

func metricCounterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	if m.Counter == nil {
		t.Fatal("expected counter metric to have Counter field")
	}
	return m.GetCounter().GetValue()
}

func metricGaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("gauge Write() error: %v", err)
	}
	if m.Gauge == nil {
		t.Fatal("expected gauge metric to have Gauge field")
	}
	return m.GetGauge().GetValue()
}

func metricHistogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := o.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T does not implement prometheus.Metric", o)
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	if m.Histogram == nil {
		t.Fatal("expected histogram metric to have Histogram field")
	}
	return m.GetHistogram().GetSampleCount()
}

func TestMetricsMiddleware_RecordsRequests(t *testing.T) {
	resetGlobalMetricsForTest()
	reg := prometheus.NewRegistry()

	r := chi.NewRouter()
	r.Use(Metrics(WithRegistry(reg)))
	r.Get("/flags/{key}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	req := httptest.NewRequest(http.MethodGet, "/flags/checkout-v2", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/boom", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	m := globalMetrics
	if m == nil {
		t.Fatal("expected metrics to be initialized")
	}

	if got := metricCounterValue(t, m.requestsTotal.WithLabelValues("/flags/{key}", "GET", "200")); got != 1 {
		t.Fatalf("requests_total(/flags/{key},GET,200)=%v, want 1", got)
	}
	if got := metricCounterValue(t, m.requestsTotal.WithLabelValues("/boom", "GET", "500")); got != 1 {
		t.Fatalf("requests_total(/boom,GET,500)=%v, want 1", got)
	}
	if got := metricHistogramCount(t, m.requestDuration.WithLabelValues("/flags/{key}")); got == 0 {
		t.Fatal("expected request_duration_seconds histogram to have sample count > 0")
	}
}

func TestMetricsMiddleware_RouteLabelUsesPattern(t *testing.T) {
	resetGlobalMetricsForTest()
	reg := prometheus.NewRegistry()

	r := chi.NewRouter()
	r.Use(Metrics(WithRegistry(reg)))
	r.Get("/flags/{key}", func(w http.ResponseWriter, r *http.Request) {})

	// Two distinct keys must land on the same route label.
	for _, path := range []string{"/flags/a", "/flags/b"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	m := globalMetrics
	if got := metricCounterValue(t, m.requestsTotal.WithLabelValues("/flags/{key}", "GET", "200")); got != 2 {
		t.Fatalf("requests_total(/flags/{key},GET,200)=%v, want 2", got)
	}
}

func TestInstrumentStore_CountsMutationsAndNotifications(t *testing.T) {
	resetGlobalMetricsForTest()
	reg := prometheus.NewRegistry()

	_ = Metrics(WithRegistry(reg)) // initialize global metrics

	store := flags.NewStore(nil)
	InstrumentStore(store)

	dispose := store.Subscribe(func() {})
	defer dispose()

	store.Set("a", 1)
	store.Set("b", 2)
	store.Delete("a")
	store.Clear()

	m := globalMetrics
	if got := metricCounterValue(t, m.mutationsTotal.WithLabelValues("set")); got != 2 {
		t.Fatalf("store_mutations_total(set)=%v, want 2", got)
	}
	if got := metricCounterValue(t, m.mutationsTotal.WithLabelValues("delete")); got != 1 {
		t.Fatalf("store_mutations_total(delete)=%v, want 1", got)
	}
	if got := metricCounterValue(t, m.mutationsTotal.WithLabelValues("clear")); got != 1 {
		t.Fatalf("store_mutations_total(clear)=%v, want 1", got)
	}
	if got := metricCounterValue(t, m.notificationsTotal); got != 4 {
		t.Fatalf("store_notifications_total=%v, want 4", got)
	}
}

func TestInstrumentStore_CountsListenerPanics(t *testing.T) {
	resetGlobalMetricsForTest()
	reg := prometheus.NewRegistry()

	_ = Metrics(WithRegistry(reg))

	store := flags.NewStore(nil)
	InstrumentStore(store)

	dispose := store.Subscribe(func() { panic("listener bug") })
	defer dispose()

	store.Set("a", 1)

	m := globalMetrics
	if got := metricCounterValue(t, m.listenerPanics); got != 1 {
		t.Fatalf("store_listener_panics_total=%v, want 1", got)
	}
}

func TestLiveRecordFunctions(t *testing.T) {
	resetGlobalMetricsForTest()
	reg := prometheus.NewRegistry()

	_ = Metrics(WithRegistry(reg))

	RecordLiveConnect()
	RecordLiveConnect()
	RecordLiveDisconnect()
	RecordLivePush()
	RecordLivePush()
	RecordLivePush()
	RecordLivePushDrop()

	m := globalMetrics
	if got := metricGaugeValue(t, m.liveClients); got != 1 {
		t.Fatalf("live_clients=%v, want 1", got)
	}
	if got := metricCounterValue(t, m.livePushesTotal); got != 3 {
		t.Fatalf("live_pushes_total=%v, want 3", got)
	}
	if got := metricCounterValue(t, m.livePushDrops); got != 1 {
		t.Fatalf("live_push_drops_total=%v, want 1", got)
	}
}

func TestLiveRecordFunctions_NoopWithoutInit(t *testing.T) {
	resetGlobalMetricsForTest()

	// Must not panic before Metrics() ran.
	RecordLiveConnect()
	RecordLiveDisconnect()
	RecordLivePush()
	RecordLivePushDrop()
}

func TestMetricsConfigOptions(t *testing.T) {
	config := defaultMetricsConfig()
	for _, opt := range []MetricsOption{
		WithNamespace("myapp"),
		WithSubsystem("flags"),
		WithConstLabels(prometheus.Labels{"env": "test"}),
		WithBuckets([]float64{0.1, 1}),
	} {
		opt(&config)
	}

	if config.Namespace != "myapp" {
		t.Errorf("Namespace=%q, want myapp", config.Namespace)
	}
	if config.Subsystem != "flags" {
		t.Errorf("Subsystem=%q, want flags", config.Subsystem)
	}
	if config.ConstLabels["env"] != "test" {
		t.Errorf("ConstLabels=%v, want env=test", config.ConstLabels)
	}
	if len(config.Buckets) != 2 {
		t.Errorf("Buckets=%v, want 2 entries", config.Buckets)
	}
}
