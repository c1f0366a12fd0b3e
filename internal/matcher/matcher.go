// Package matcher implements the Matcher Engine (spec.md §4.3, C4):
// composing a Deceit's or Response's custom MatcherExprs into a single
// logical AND, short-circuiting on first failure. Built-in predicates
// (method, required headers, URI) are evaluated directly by the dispatcher;
// this package only handles scripted matchers.
package matcher

import (
	"go.uber.org/zap"

	"github.com/rustrum/apate/internal/metrics"
	"github.com/rustrum/apate/internal/reqctx"
	"github.com/rustrum/apate/internal/script"
	"github.com/rustrum/apate/internal/spec"
)

// Engine evaluates MatcherExpr chains via a Script Host.
type Engine struct {
	scripts *script.Host
	logger  *zap.Logger
	metrics *metrics.Collector
}

// New creates an Engine over the given Script Host. metrics may be nil, in
// which case matcher errors are logged but not recorded.
func New(scripts *script.Host, logger *zap.Logger, metricsCollector *metrics.Collector) *Engine {
	return &Engine{scripts: scripts, logger: logger, metrics: metricsCollector}
}

// EvalAll reports whether every matcher in exprs evaluates truthy against
// rc/args, short-circuiting on the first failure. A script error counts as
// a failed match, never as a dispatcher-level error (spec.md §4.3/§7: a
// mock server must keep serving other routes).
func (e *Engine) EvalAll(rc *reqctx.RequestContext, args spec.Args, exprs []spec.MatcherExpr) bool {
	for _, expr := range exprs {
		ok, err := e.scripts.EvalMatcher(expr.Source, rc, args)
		if err != nil {
			e.logger.Debug("matcher evaluation failed, treating as non-match", zap.Error(err))
			if e.metrics != nil {
				e.metrics.RecordMatcherError(err)
			}
			return false
		}
		if !ok {
			return false
		}
	}
	return true
}
