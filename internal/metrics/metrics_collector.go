package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// Collector centralizes metrics recording so dispatcher/admin code calls one
// narrow interface instead of touching Prometheus types directly.
type Collector struct {
	prometheus *PrometheusMetrics
	logger     *zap.Logger
}

// NewCollector creates a Collector backed by a fresh PrometheusMetrics
// registered under namespace against the default Prometheus registerer.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	return NewCollectorWithRegistry(namespace, prometheus.DefaultRegisterer, logger)
}

// NewCollectorWithRegistry creates a Collector against a caller-supplied
// registry, so callers that construct more than one Collector in the same
// process (tests, mainly) can use an isolated prometheus.Registry instead
// of colliding on the process-wide default.
func NewCollectorWithRegistry(namespace string, registerer prometheus.Registerer, logger *zap.Logger) *Collector {
	return &Collector{
		prometheus: NewPrometheusMetricsWithRegistry(namespace, registerer, logger),
		logger:     logger,
	}
}

// RecordRequest records a dispatched request's method, final status, and
// handling duration.
func (c *Collector) RecordRequest(method, status string, duration time.Duration) {
	c.prometheus.RecordRequest(method, status, duration.Seconds())

	c.logger.Debug("recorded request metric",
		zap.String("method", method),
		zap.String("status", status),
		zap.Duration("duration", duration))
}

// RecordDeceitNotFound records a request that matched no deceit or no
// response within a matched deceit.
func (c *Collector) RecordDeceitNotFound() {
	c.prometheus.RecordDeceitNotFound()
}

// RecordAdminMutation records a specification mutation call.
func (c *Collector) RecordAdminMutation(operation string, ok bool) {
	c.prometheus.RecordAdminMutation(operation, ok)

	c.logger.Debug("recorded admin mutation metric",
		zap.String("operation", operation),
		zap.Bool("ok", ok))
}

// RecordMatcherError records a matcher script evaluation error.
func (c *Collector) RecordMatcherError(err error) {
	c.prometheus.RecordMatcherError()
	c.logger.Debug("recorded matcher error metric", zap.Error(err))
}

// RecordTemplateError records a template render error.
func (c *Collector) RecordTemplateError(err error) {
	c.prometheus.RecordTemplateError()
	c.logger.Debug("recorded template error metric", zap.Error(err))
}

// RecordScriptError records a script evaluation error for the given role.
func (c *Collector) RecordScriptError(role string, err error) {
	c.prometheus.RecordScriptError(role)
	c.logger.Debug("recorded script error metric", zap.String("role", role), zap.Error(err))
}

// ServeHTTP serves Prometheus metrics via HTTP.
func (c *Collector) ServeHTTP(ctx *fasthttp.RequestCtx) {
	c.prometheus.ServeHTTP(ctx)
}
