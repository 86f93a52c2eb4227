package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Shared HTTP metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets, // [0.005..10]
		},
		[]string{"method", "path", "status"},
	)

	ready = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "service_ready",
		Help: "1 when the service reports ready, 0 otherwise.",
	})

	tokensIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_tokens_issued_total",
		Help: "Total number of JWTs issued.",
	})

	gateDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "community_gate_denials_total",
			Help: "Community access denials by reason.",
		},
		[]string{"reason"},
	)

	renumberOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "slotlist_renumber_operations_total",
			Help: "Order renumbering operations by entity kind.",
		},
		[]string{"kind"},
	)
)

// Init registers all metrics with the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		ready, tokensIssued, gateDenials, renumberOps,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetReady flips the readiness gauge reported to Prometheus.
func SetReady(ok bool) {
	if ok {
		ready.Set(1)
	} else {
		ready.Set(0)
	}
}

// TokenIssued counts a successful JWT issuance.
func TokenIssued() {
	tokensIssued.Inc()
}

// GateDenied counts a community gate denial with its reason string.
func GateDenied(reason string) {
	gateDenials.WithLabelValues(reason).Inc()
}

// RenumberObserved counts a renumbering pass over slot groups or slots.
func RenumberObserved(kind string) {
	renumberOps.WithLabelValues(kind).Inc()
}

// CanonicalPath collapses slugs and uids in known routes so metric labels
// stay low-cardinality.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 || parts[0] != "v1" {
		return path
	}
	switch parts[1] {
	case "missions":
		parts[2] = ":slug"
		if len(parts) >= 4 {
			switch parts[3] {
			case "slots", "slotGroups":
				if len(parts) >= 5 {
					parts[4] = ":uid"
				}
			case "events":
			default:
				return path
			}
		}
	case "communities":
		parts[2] = ":slug"
		if len(parts) >= 5 && parts[3] == "applications" && parts[4] != "status" {
			parts[4] = ":uid"
		}
	default:
		return path
	}
	return "/" + strings.Join(parts, "/")
}

// Instrument wraps a handler with RPS/latency/in-flight measurement.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter is a local copy so we can observe the response code.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
