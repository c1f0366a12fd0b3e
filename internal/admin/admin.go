// Package admin implements the /apate/* administrative surface (spec.md
// §6, SPEC_FULL.md §6): specification inspection, hot-swap mutation, and a
// minimal embedded placeholder for the rest of the web UI. It follows the
// teacher's internal_server route-table shape (exact-path lookup by
// method, JSON via internal/common/httputil) rather than fasthttp's own
// router, since the surface is small and fixed.
package admin

import (
	"bytes"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/rustrum/apate/internal/common/httputil"
	"github.com/rustrum/apate/internal/metrics"
	"github.com/rustrum/apate/internal/registry"
	"github.com/rustrum/apate/internal/spec"
)

const (
	pathInfo           = "/apate/info"
	pathSpecs          = "/apate/specs"
	pathSpecsReplace   = "/apate/specs/replace"
	pathSpecsAppend    = "/apate/specs/append"
	pathSpecsPrepend   = "/apate/specs/prepend"
	placeholderUIBody  = "<!doctype html><title>apate</title><body>apate admin UI is not bundled; use the HTTP endpoints under /apate/*.</body>"
	placeholderUICType = "text/html; charset=utf-8"
)

// version is the admin-reported build identifier. Apate does not currently
// stamp a version at build time, so this is a fixed placeholder until one
// is wired through ldflags.
const version = "dev"

// Handler serves the admin surface. It satisfies dispatcher.AdminHandler.
type Handler struct {
	registry  *registry.Registry
	metrics   *metrics.Collector
	startTime time.Time
}

// New creates an admin Handler over the given Registry.
func New(reg *registry.Registry, metricsCollector *metrics.Collector) *Handler {
	return &Handler{
		registry:  reg,
		metrics:   metricsCollector,
		startTime: time.Now().UTC(),
	}
}

// HandleAdmin dispatches a /apate/* request to the matching endpoint.
func (h *Handler) HandleAdmin(ctx *fasthttp.RequestCtx, logger *zap.Logger) {
	method := string(ctx.Method())
	path := string(ctx.Path())

	switch {
	case method == fasthttp.MethodGet && path == pathInfo:
		h.handleInfo(ctx)
	case method == fasthttp.MethodGet && path == pathSpecs:
		h.handleGetSpecs(ctx)
	case method == fasthttp.MethodPost && path == pathSpecsReplace:
		h.handleMutate(ctx, logger, "replace", h.registry.Replace)
	case method == fasthttp.MethodPost && path == pathSpecsAppend:
		h.handleMutate(ctx, logger, "append", h.registry.Append)
	case method == fasthttp.MethodPost && path == pathSpecsPrepend:
		h.handleMutate(ctx, logger, "prepend", h.registry.Prepend)
	default:
		h.handlePlaceholder(ctx)
	}
}

func (h *Handler) handleInfo(ctx *fasthttp.RequestCtx) {
	snapshot := h.registry.Snapshot()
	httputil.JSONData(ctx, map[string]interface{}{
		"version":     version,
		"specs_count": len(snapshot.Deceits),
		"uptime_sec":  int(time.Since(h.startTime).Seconds()),
	}, fasthttp.StatusOK)
}

func (h *Handler) handleGetSpecs(ctx *fasthttp.RequestCtx) {
	snapshot := h.registry.Snapshot()
	body, err := spec.Encode(snapshot)
	if err != nil {
		httputil.JSONError(ctx, "failed to encode specification: "+err.Error(), fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("text/plain; charset=utf-8")
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBody(body)
}

// handleMutate parses the request body as a TOML Specification and applies
// it via apply (Replace/Append/Prepend). A failed parse or a failed
// validate leaves the active specification untouched (registry.swap's
// validate-before-install guarantee) and is reported as a 400.
func (h *Handler) handleMutate(ctx *fasthttp.RequestCtx, logger *zap.Logger, operation string, apply func(*spec.Specification) error) {
	next, err := spec.Parse(bytes.NewReader(ctx.PostBody()))
	if err != nil {
		h.metrics.RecordAdminMutation(operation, false)
		httputil.JSONError(ctx, "failed to parse specification: "+err.Error(), fasthttp.StatusBadRequest)
		return
	}

	if err := apply(next); err != nil {
		h.metrics.RecordAdminMutation(operation, false)
		logger.Info("admin mutation rejected", zap.String("operation", operation), zap.Error(err))
		httputil.JSONError(ctx, "failed to apply specification: "+err.Error(), fasthttp.StatusBadRequest)
		return
	}

	snapshot := h.registry.Snapshot()
	h.metrics.RecordAdminMutation(operation, true)
	logger.Info("admin mutation applied", zap.String("operation", operation), zap.Int("deceits", len(snapshot.Deceits)))
	httputil.JSONData(ctx, map[string]interface{}{
		"specs_count": len(snapshot.Deceits),
	}, fasthttp.StatusOK)
}

func (h *Handler) handlePlaceholder(ctx *fasthttp.RequestCtx) {
	ctx.SetContentType(placeholderUICType)
	ctx.SetStatusCode(fasthttp.StatusOK)
	ctx.SetBodyString(placeholderUIBody)
}
