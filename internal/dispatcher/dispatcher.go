// Package dispatcher implements the Dispatcher (spec.md §4.2, C9): the
// per-request entry point that looks up the active Specification, runs the
// matcher pipeline, and hands off to the Response Builder. It mirrors the
// teacher's Server.HandleRequest shape — request ID generation, a
// per-request logger, a path switch between admin and mock surfaces,
// structured start/end logging, and metrics recording.
package dispatcher

import (
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/rustrum/apate/internal/common/requestid"
	"github.com/rustrum/apate/internal/matcher"
	"github.com/rustrum/apate/internal/metrics"
	"github.com/rustrum/apate/internal/registry"
	"github.com/rustrum/apate/internal/reqctx"
	"github.com/rustrum/apate/internal/responsebuilder"
	"github.com/rustrum/apate/internal/spec"
	"github.com/rustrum/apate/internal/store"
)

// AdminHandler serves the /apate/* administrative surface (internal/admin).
// Dispatcher depends only on this interface, not on the admin package
// itself, so admin's dependency on registry/spec stays one-directional.
type AdminHandler interface {
	HandleAdmin(ctx *fasthttp.RequestCtx, logger *zap.Logger)
}

// Dispatcher routes inbound requests to either the admin surface or the
// mock-dispatch pipeline.
type Dispatcher struct {
	registry *registry.Registry
	matchers *matcher.Engine
	builder  *responsebuilder.Builder
	shared   *store.Store
	metrics  *metrics.Collector
	logger   *zap.Logger
	admin    AdminHandler

	// adminPrefix is the path prefix routed to admin instead of dispatch.
	adminPrefix string
}

// New creates a Dispatcher wired to all of its collaborators.
func New(
	reg *registry.Registry,
	matchers *matcher.Engine,
	builder *responsebuilder.Builder,
	shared *store.Store,
	metricsCollector *metrics.Collector,
	logger *zap.Logger,
	admin AdminHandler,
) *Dispatcher {
	return &Dispatcher{
		registry:    reg,
		matchers:    matchers,
		builder:     builder,
		shared:      shared,
		metrics:     metricsCollector,
		logger:      logger,
		admin:       admin,
		adminPrefix: "/apate/",
	}
}

// HandleRequest is the fasthttp.RequestHandler for the whole server.
func (d *Dispatcher) HandleRequest(ctx *fasthttp.RequestCtx) {
	customRequestID := string(ctx.Request.Header.Peek("X-Request-ID"))
	requestID := requestid.GenerateRequestID(customRequestID)
	ctx.Response.Header.Set("X-Request-ID", requestID)

	logger := d.logger.With(zap.String("request_id", requestID))
	path := string(ctx.Path())

	if strings.HasPrefix(path, d.adminPrefix) {
		d.admin.HandleAdmin(ctx, logger)
		return
	}

	d.dispatchMock(ctx, logger)
}

func (d *Dispatcher) dispatchMock(ctx *fasthttp.RequestCtx, logger *zap.Logger) {
	start := time.Now()
	method := string(ctx.Method())
	path := string(ctx.Path())

	logger.Debug("START dispatching request", zap.String("method", method), zap.String("path", path))

	snapshot := d.registry.Snapshot()
	rc, deceit, resp := d.selectResponse(ctx, snapshot)

	if resp == nil {
		d.metrics.RecordDeceitNotFound()
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		ctx.SetBody(nil)
		d.metrics.RecordRequest(method, statusLabel(fasthttp.StatusNotFound), time.Since(start))
		logger.Debug("END no deceit/response matched", zap.Duration("duration", time.Since(start)))
		return
	}

	code, headers, body, err := d.builder.Build(resp, rc, deceit.Args)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetBodyString(err.Error())
		d.metrics.RecordRequest(method, statusLabel(fasthttp.StatusInternalServerError), time.Since(start))
		logger.Warn("response build failed", zap.Error(err))
		return
	}

	for name, value := range headers {
		ctx.Response.Header.Set(name, value)
	}
	if deceit.ID != "" {
		ctx.Response.Header.Set("X-Apate-Matched-Deceit", deceit.ID)
	}
	if resp.ID != "" {
		ctx.Response.Header.Set("X-Apate-Matched-Response", resp.ID)
	}
	ctx.SetStatusCode(code)
	ctx.SetBody(body)

	duration := time.Since(start)
	d.metrics.RecordRequest(method, statusLabel(code), duration)
	logger.Info("END request dispatched",
		zap.String("deceit_id", deceit.ID),
		zap.Int("status", code),
		zap.Duration("duration", duration))
}

// selectResponse implements spec.md §4.2 steps 2-3: the first Deceit whose
// URI/method/headers/matchers all pass, then the first Response within it
// whose own matchers pass. Returns nil resp if nothing matched.
func (d *Dispatcher) selectResponse(ctx *fasthttp.RequestCtx, snapshot *spec.Specification) (*reqctx.RequestContext, *spec.Deceit, *spec.Response) {
	path := string(ctx.Path())
	method := string(ctx.Method())

	for i := range snapshot.Deceits {
		deceit := &snapshot.Deceits[i]

		pathArgs, ok := matchURI(deceit, path)
		if !ok {
			continue
		}
		if !methodAllowed(deceit, method) {
			continue
		}
		if !headersSatisfied(ctx, deceit) {
			continue
		}

		rc := reqctx.New(ctx, pathArgs, d.shared)
		if !d.matchers.EvalAll(rc, deceit.Args, deceit.Matchers) {
			continue
		}

		for ri := range deceit.Responses {
			resp := &deceit.Responses[ri]
			if !d.matchers.EvalAll(rc, deceit.Args, resp.Matchers) {
				continue
			}
			return rc, deceit, resp
		}
		// Deceit matched but no response variant did; per spec.md §4.2 step
		// 6 this is a 404, and earlier deceits always win, so stop here.
		return rc, deceit, nil
	}

	return reqctx.New(ctx, nil, d.shared), nil, nil
}

func matchURI(d *spec.Deceit, path string) (map[string]string, bool) {
	for _, p := range d.CompiledURIs() {
		if args, ok := p.Match(path); ok {
			return args, true
		}
	}
	return nil, false
}

func methodAllowed(d *spec.Deceit, method string) bool {
	if len(d.Methods) == 0 {
		return true
	}
	for _, m := range d.Methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

func headersSatisfied(ctx *fasthttp.RequestCtx, d *spec.Deceit) bool {
	for name, value := range d.RequiredHeaders {
		if string(ctx.Request.Header.Peek(name)) != value {
			return false
		}
	}
	return true
}

func statusLabel(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

// Shutdown releases dispatcher-owned resources. Today the Dispatcher owns
// nothing that needs closing; it exists so main.go has one graceful
// shutdown hook regardless of what future collaborators need closing.
func (d *Dispatcher) Shutdown() error {
	return nil
}
