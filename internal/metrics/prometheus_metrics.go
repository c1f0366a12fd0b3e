package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
)

// PrometheusMetrics provides Prometheus-backed counters and histograms for
// the dispatch and admin surfaces.
type PrometheusMetrics struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	deceitNotFoundTotal prometheus.Counter

	adminMutationsTotal *prometheus.CounterVec

	matcherErrorsTotal  prometheus.Counter
	templateErrorsTotal prometheus.Counter
	scriptErrorsTotal   *prometheus.CounterVec

	logger      *zap.Logger
	httpHandler func(*fasthttp.RequestCtx)
}

// NewPrometheusMetrics creates a PrometheusMetrics registered against the
// default Prometheus registerer.
func NewPrometheusMetrics(namespace string, logger *zap.Logger) *PrometheusMetrics {
	return NewPrometheusMetricsWithRegistry(namespace, prometheus.DefaultRegisterer, logger)
}

// NewPrometheusMetricsWithRegistry creates a PrometheusMetrics against a
// caller-supplied registry, so tests can register against an isolated
// prometheus.Registry instead of the process-wide default.
func NewPrometheusMetricsWithRegistry(namespace string, registerer prometheus.Registerer, logger *zap.Logger) *PrometheusMetrics {
	pm := &PrometheusMetrics{logger: logger}

	pm.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "requests_total",
			Help:      "Total number of dispatched mock requests",
		},
		[]string{"method", "status"},
	)

	pm.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "request_duration_seconds",
			Help:      "Time taken to match and build a mock response",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)

	pm.deceitNotFoundTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "deceit_not_found_total",
			Help:      "Total number of requests that matched no deceit or no response",
		},
	)

	pm.adminMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "admin",
			Name:      "mutations_total",
			Help:      "Total number of specification mutations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	pm.matcherErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matcher",
			Name:      "errors_total",
			Help:      "Total number of matcher script evaluation errors (treated as non-match)",
		},
	)

	pm.templateErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "template",
			Name:      "errors_total",
			Help:      "Total number of template render failures",
		},
	)

	pm.scriptErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "script",
			Name:      "errors_total",
			Help:      "Total number of script evaluation errors by role (body, processor)",
		},
		[]string{"role"},
	)

	registerer.MustRegister(
		pm.requestsTotal,
		pm.requestDuration,
		pm.deceitNotFoundTotal,
		pm.adminMutationsTotal,
		pm.matcherErrorsTotal,
		pm.templateErrorsTotal,
		pm.scriptErrorsTotal,
	)

	gatherer, ok := registerer.(prometheus.Gatherer)
	if !ok {
		gatherer = prometheus.DefaultGatherer
	}
	pm.httpHandler = fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	logger.Debug("prometheus metrics initialized")
	return pm
}

// RecordRequest records one dispatched request with its outcome and timing.
func (pm *PrometheusMetrics) RecordRequest(method, status string, durationSeconds float64) {
	pm.requestsTotal.WithLabelValues(method, status).Inc()
	pm.requestDuration.WithLabelValues(method, status).Observe(durationSeconds)
}

// RecordDeceitNotFound records a request matching no deceit/response.
func (pm *PrometheusMetrics) RecordDeceitNotFound() {
	pm.deceitNotFoundTotal.Inc()
}

// RecordAdminMutation records a replace/append/prepend call and whether it
// succeeded.
func (pm *PrometheusMetrics) RecordAdminMutation(operation string, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	pm.adminMutationsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordMatcherError records a matcher script failure.
func (pm *PrometheusMetrics) RecordMatcherError() {
	pm.matcherErrorsTotal.Inc()
}

// RecordTemplateError records a template render failure.
func (pm *PrometheusMetrics) RecordTemplateError() {
	pm.templateErrorsTotal.Inc()
}

// RecordScriptError records a script evaluation failure for the given role
// ("body" or "processor").
func (pm *PrometheusMetrics) RecordScriptError(role string) {
	pm.scriptErrorsTotal.WithLabelValues(role).Inc()
}

// ServeHTTP serves the Prometheus exposition format.
func (pm *PrometheusMetrics) ServeHTTP(ctx *fasthttp.RequestCtx) {
	pm.httpHandler(ctx)
}
