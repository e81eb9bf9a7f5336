package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	dispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatches_total",
			Help: "Total number of dispatch attempts by outcome",
		},
		[]string{"outcome"},
	)

	dispatchConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_conflicts_total",
			Help: "Dispatch attempts that lost the race for an ambulance",
		},
	)

	etaLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eta_lookups_total",
			Help: "Total number of routing-provider ETA lookups by result",
		},
		[]string{"result"},
	)

	etaLookupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "eta_lookup_duration_seconds",
			Help:    "Routing-provider ETA lookup duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	readinessUpdatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "readiness_updates_total",
			Help: "Total number of hospital capacity updates",
		},
	)

	emergencyTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emergency_transitions_total",
			Help: "Total number of emergency status transitions",
		},
		[]string{"from", "to"},
	)

	realtimeSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_subscribers",
			Help: "Number of open hospital dashboard subscriptions",
		},
	)

	realtimeEventsDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_events_delivered_total",
			Help: "Total number of emergency events delivered to subscribers",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath normalizes URL paths for metrics to avoid cardinality explosion
func normalizePath(path string) string {
	if len(path) > 100 {
		return "/api/..."
	}
	return path
}

// --- Business metric helpers ---

// RecordDispatch records a dispatch attempt outcome
// ("committed", "ambulance_unavailable", "error").
func RecordDispatch(outcome string) {
	dispatchesTotal.WithLabelValues(outcome).Inc()
	if outcome == "ambulance_unavailable" {
		dispatchConflictsTotal.Inc()
	}
}

// RecordETALookup records a routing-provider lookup ("ok" or "degraded")
func RecordETALookup(result string, duration time.Duration) {
	etaLookupsTotal.WithLabelValues(result).Inc()
	etaLookupDuration.Observe(duration.Seconds())
}

// RecordReadinessUpdate records a hospital capacity update
func RecordReadinessUpdate() {
	readinessUpdatesTotal.Inc()
}

// RecordEmergencyTransition records an emergency status change
func RecordEmergencyTransition(from, to string) {
	emergencyTransitionsTotal.WithLabelValues(from, to).Inc()
}

// SubscriberOpened records a new dashboard subscription
func SubscriberOpened() {
	realtimeSubscribers.Inc()
}

// SubscriberClosed records a released dashboard subscription
func SubscriberClosed() {
	realtimeSubscribers.Dec()
}

// RecordEventDelivered records an emergency event delivered to a subscriber
func RecordEventDelivered() {
	realtimeEventsDelivered.Inc()
}
