package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/flagstream-dev/flagstream/pkg/flags"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "flagstream").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for request duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:   "flagstream",
		Subsystem:   "",
		ConstLabels: nil,
		Buckets:     prometheus.DefBuckets,
		Registry:    prometheus.DefaultRegisterer,
	}
}

// metrics holds the Prometheus metrics for the flag service.
type metrics struct {
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	mutationsTotal     *prometheus.CounterVec
	notificationsTotal prometheus.Counter
	listenerPanics     prometheus.Counter
	liveClients        prometheus.Gauge
	livePushesTotal    prometheus.Counter
	livePushDrops      prometheus.Counter
}

// globalMetrics is the singleton metrics instance, created on first call to
// Metrics().
var (
	globalMetrics   *metrics
	globalMetricsMu sync.Mutex
)

func initMetrics(config MetricsConfig) *metrics {
	factory := promauto.With(config.Registry)

	return &metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "requests_total",
			Help:        "Total number of flag API requests",
			ConstLabels: config.ConstLabels,
		}, []string{"route", "method", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "request_duration_seconds",
			Help:        "Flag API request duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"route"}),

		mutationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "store_mutations_total",
			Help:        "Total store mutations by operation",
			ConstLabels: config.ConstLabels,
		}, []string{"op"}),

		notificationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "store_notifications_total",
			Help:        "Total listener notification passes",
			ConstLabels: config.ConstLabels,
		}),

		listenerPanics: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "store_listener_panics_total",
			Help:        "Total panics recovered from store listeners",
			ConstLabels: config.ConstLabels,
		}),

		liveClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "live_clients",
			Help:        "Number of connected live WebSocket clients",
			ConstLabels: config.ConstLabels,
		}),

		livePushesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "live_pushes_total",
			Help:        "Total flag change events pushed to live clients",
			ConstLabels: config.ConstLabels,
		}),

		livePushDrops: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "live_push_drops_total",
			Help:        "Total flag change events dropped on slow live clients",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// statusRecorder captures the response status for labeling.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Metrics creates middleware that collects Prometheus metrics for the flag
// API.
//
// Metrics collected:
//   - flagstream_requests_total: Counter of requests by route, method, status
//   - flagstream_request_duration_seconds: Histogram of request duration
//   - flagstream_store_mutations_total: Counter of store mutations by op
//   - flagstream_store_notifications_total: Counter of notification passes
//   - flagstream_store_listener_panics_total: Counter of recovered panics
//   - flagstream_live_clients: Gauge of connected WebSocket clients
//   - flagstream_live_pushes_total / _drops_total: live push volume
//
// Store-side metrics require InstrumentStore; live metrics are recorded by
// the flag service.
//
// Example:
//
//	handler := middleware.Metrics(
//	    middleware.WithNamespace("myapp"),
//	)(srv.Handler())
func Metrics(opts ...MetricsOption) func(http.Handler) http.Handler {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	globalMetricsMu.Lock()
	if globalMetrics == nil {
		globalMetrics = initMetrics(config)
	}
	m := globalMetrics
	globalMetricsMu.Unlock()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			next.ServeHTTP(rec, r)

			route := routePattern(r)
			m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
			m.requestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		})
	}
}

// routePattern returns the matched chi route pattern, keeping label
// cardinality bounded regardless of flag key names in the path.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// InstrumentStore wires store lifecycle events into the metrics instance.
// Call after Metrics() has initialized the instance.
func InstrumentStore(s *flags.Store) {
	globalMetricsMu.Lock()
	m := globalMetrics
	globalMetricsMu.Unlock()

	if m == nil || s == nil {
		return
	}

	s.SetHooks(flags.Hooks{
		OnMutation: func(op string) {
			m.mutationsTotal.WithLabelValues(op).Inc()
		},
		OnNotify: func(int) {
			m.notificationsTotal.Inc()
		},
		OnListenerPanic: func(any) {
			m.listenerPanics.Inc()
		},
	})
}

// RecordLiveConnect records a live client connecting.
func RecordLiveConnect() {
	if globalMetrics != nil {
		globalMetrics.liveClients.Inc()
	}
}

// RecordLiveDisconnect records a live client disconnecting.
func RecordLiveDisconnect() {
	if globalMetrics != nil {
		globalMetrics.liveClients.Dec()
	}
}

// RecordLivePush records a change event pushed to a live client.
func RecordLivePush() {
	if globalMetrics != nil {
		globalMetrics.livePushesTotal.Inc()
	}
}

// RecordLivePushDrop records a change event dropped on a slow client.
func RecordLivePushDrop() {
	if globalMetrics != nil {
		globalMetrics.livePushDrops.Inc()
	}
}
