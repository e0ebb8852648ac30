package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the portal
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// PolicyDecisionsTotal counts policy checks by decision kind, rule and outcome
	PolicyDecisionsTotal *prometheus.CounterVec

	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	OTPRequestsTotal *prometheus.CounterVec

	UsersTotal        prometheus.Gauge
	PublicationsTotal *prometheus.GaugeVec

	otel *OTelMetrics
}

// NewMetrics creates and registers all collectors on registry
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		PolicyDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_policy_decisions_total",
				Help: "Total number of policy decisions",
			},
			[]string{"decision", "rule", "outcome"},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache"},
		),
		OTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_otp_requests_total",
				Help: "Total number of OTP operations",
			},
			[]string{"operation", "status"},
		),
		UsersTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "portal_users_total",
				Help: "Number of registered users",
			},
		),
		PublicationsTotal: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "portal_publications_total",
				Help: "Number of publications by type",
			},
			[]string{"type"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PolicyDecisionsTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.OTPRequestsTotal,
		m.UsersTotal,
		m.PublicationsTotal,
	)

	return m
}

// WithOTel mirrors HTTP and policy measurements to OpenTelemetry instruments
func (m *Metrics) WithOTel(om *OTelMetrics) *Metrics {
	m.otel = om
	return m
}

// RecordPolicyDecision counts one policy decision. Safe on a nil receiver.
func (m *Metrics) RecordPolicyDecision(decision, rule string, allowed bool) {
	if m == nil {
		return
	}
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	m.PolicyDecisionsTotal.WithLabelValues(decision, rule, outcome).Inc()
	m.otel.recordPolicyDecision(decision, rule, outcome)
}

// RecordCache counts a cache lookup. Safe on a nil receiver.
func (m *Metrics) RecordCache(cache string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(cache).Inc()
}

// RecordOTP counts an OTP operation. Safe on a nil receiver.
func (m *Metrics) RecordOTP(operation, status string) {
	if m == nil {
		return
	}
	m.OTPRequestsTotal.WithLabelValues(operation, status).Inc()
}

// statusRecorder wraps http.ResponseWriter to capture the status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// routeLabel uses the mux route template so ids do not explode label cardinality
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments requests. Register it with router.Use so
// the matched route is known.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := routeLabel(r)
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(duration)
			metrics.otel.recordHTTPRequest(r.Context(), r.Method, route, rw.statusCode, duration)
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
