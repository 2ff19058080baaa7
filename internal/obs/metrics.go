package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics
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
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	readyGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "aibridge_ready",
		Help: "1 when the last readiness probe succeeded.",
	})
)

// Domain metrics
var (
	rateLimitDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aibridge_ratelimit_decisions_total",
			Help: "Rate limiter admissions by outcome and key kind.",
		},
		[]string{"outcome", "kind"},
	)

	authzDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aibridge_authz_decisions_total",
			Help: "Authorization decisions by action, outcome and reason.",
		},
		[]string{"action", "outcome", "reason"},
	)

	bridgeUpstream = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aibridge_bridge_upstream_calls_total",
			Help: "Calls to the annotation engine by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	bridgeUpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aibridge_bridge_upstream_duration_seconds",
			Help:    "Annotation engine call latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	bridgeAcquires = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aibridge_bridge_acquire_total",
			Help: "Session acquisitions by source (cache, issued, shared, error).",
		},
		[]string{"source"},
	)

	bridgeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "aibridge_bridge_sessions",
		Help: "Live bridged sessions held in memory.",
	})

	auditFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aibridge_audit_failures_total",
			Help: "Audit records that could not be persisted.",
		},
		[]string{"reason"},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aibridge_cache_lookups_total",
			Help: "Dashboard cache lookups by result.",
		},
		[]string{"result"},
	)
)

var initOnce sync.Once

// Init registers all collectors in the default registry.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration, readyGauge,
			rateLimitDecisions, authzDecisions,
			bridgeUpstream, bridgeUpstreamDuration, bridgeAcquires, bridgeSessions,
			auditFailures, cacheLookups,
		)
	})
}

// Handler exposes the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetReady flips the readiness gauge.
func SetReady(ok bool) {
	if ok {
		readyGauge.Set(1)
		return
	}
	readyGauge.Set(0)
}

func RecordRateLimit(allowed bool, kind string) {
	outcome := "allowed"
	if !allowed {
		outcome = "throttled"
	}
	rateLimitDecisions.WithLabelValues(outcome, kind).Inc()
}

func RecordAuthz(action, outcome, reason string) {
	authzDecisions.WithLabelValues(action, outcome, reason).Inc()
}

func RecordUpstream(op, outcome string, d time.Duration) {
	bridgeUpstream.WithLabelValues(op, outcome).Inc()
	bridgeUpstreamDuration.WithLabelValues(op).Observe(d.Seconds())
}

func RecordAcquire(source string) {
	bridgeAcquires.WithLabelValues(source).Inc()
}

// AddSessions adjusts the live session gauge by delta.
func AddSessions(delta int) {
	bridgeSessions.Add(float64(delta))
}

func RecordAuditFailure(reason string) {
	auditFailures.WithLabelValues(reason).Inc()
}

func RecordCacheLookup(hit bool) {
	if hit {
		cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	cacheLookups.WithLabelValues("miss").Inc()
}

// Instrument measures request rate, latency and in-flight count.
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

// idSegments lists path segments whose successor is an identifier.
var idSegments = map[string]bool{
	"projects":      true,
	"organizations": true,
	"members":       true,
	"principals":    true,
}

// CanonicalPath collapses identifiers so metric label cardinality stays bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == "/" {
		return "/"
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	out := make([]string, 0, len(parts))
	for i := 0; i < len(parts); i++ {
		seg := parts[i]
		if seg == "engine" && i+1 < len(parts) && len(out) > 0 && out[len(out)-1] == ":id" {
			out = append(out, "engine", "*")
			break
		}
		out = append(out, seg)
		if idSegments[seg] && i+1 < len(parts) {
			out = append(out, ":id")
			i++
		}
	}
	return "/" + strings.Join(out, "/")
}

// statusWriter is a local copy so the package does not depend on httpapi.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
