package admin

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/rustrum/apate/internal/metrics"
	"github.com/rustrum/apate/internal/registry"
	"github.com/rustrum/apate/internal/spec"
)

func newHandler(t *testing.T, initial *spec.Specification) *Handler {
	t.Helper()
	reg := registry.New(initial)
	coll := metrics.NewCollectorWithRegistry("apate_admin_test", prometheus.NewRegistry(), zap.NewNop())
	return New(reg, coll)
}

func newCtx(method, path, body string) *fasthttp.RequestCtx {
	var ctx fasthttp.RequestCtx
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(path)
	if body != "" {
		req.SetBodyString(body)
	}
	ctx.Init(&req, nil, nil)
	return &ctx
}

func TestHandleAdmin_Info(t *testing.T) {
	h := newHandler(t, spec.Empty())
	ctx := newCtx(fasthttp.MethodGet, "/apate/info", "")

	h.HandleAdmin(ctx, zap.NewNop())

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), `"specs_count":0`)
}

func TestHandleAdmin_GetSpecsReturnsTOML(t *testing.T) {
	s := &spec.Specification{
		Deceits: []spec.Deceit{
			{URIs: []string{"/hello"}, Responses: []spec.Response{{Code: 200, Output: "world"}}},
		},
	}
	require.NoError(t, spec.Validate(s))
	h := newHandler(t, s)

	ctx := newCtx(fasthttp.MethodGet, "/apate/specs", "")
	h.HandleAdmin(ctx, zap.NewNop())

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Header.Peek("Content-Type")), "text/plain")
	assert.Contains(t, string(ctx.Response.Body()), "/hello")
}

func TestHandleAdmin_ReplaceInstallsNewSpec(t *testing.T) {
	h := newHandler(t, spec.Empty())

	body := `
[[deceits]]
uris = ["/ping"]
[[deceits.responses]]
code = 200
output = "pong"
`
	ctx := newCtx(fasthttp.MethodPost, "/apate/specs/replace", body)
	h.HandleAdmin(ctx, zap.NewNop())

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, 1, len(h.registry.Snapshot().Deceits))
}

func TestHandleAdmin_ReplaceInvalidTOMLLeavesActiveUnchanged(t *testing.T) {
	s := &spec.Specification{
		Deceits: []spec.Deceit{
			{URIs: []string{"/hello"}, Responses: []spec.Response{{Code: 200, Output: "world"}}},
		},
	}
	require.NoError(t, spec.Validate(s))
	h := newHandler(t, s)

	ctx := newCtx(fasthttp.MethodPost, "/apate/specs/replace", "not valid toml [[[")
	h.HandleAdmin(ctx, zap.NewNop())

	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
	assert.Equal(t, 1, len(h.registry.Snapshot().Deceits))
}

func TestHandleAdmin_AppendKeepsExistingFirst(t *testing.T) {
	s := &spec.Specification{
		Deceits: []spec.Deceit{
			{URIs: []string{"/a"}, Responses: []spec.Response{{Code: 200, Output: "a"}}},
		},
	}
	require.NoError(t, spec.Validate(s))
	h := newHandler(t, s)

	body := `
[[deceits]]
uris = ["/b"]
[[deceits.responses]]
code = 200
output = "b"
`
	ctx := newCtx(fasthttp.MethodPost, "/apate/specs/append", body)
	h.HandleAdmin(ctx, zap.NewNop())

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	snapshot := h.registry.Snapshot()
	require.Len(t, snapshot.Deceits, 2)
	assert.Equal(t, "/a", snapshot.Deceits[0].URIs[0])
	assert.Equal(t, "/b", snapshot.Deceits[1].URIs[0])
}

func TestHandleAdmin_PrependPutsNewFirst(t *testing.T) {
	s := &spec.Specification{
		Deceits: []spec.Deceit{
			{URIs: []string{"/a"}, Responses: []spec.Response{{Code: 200, Output: "a"}}},
		},
	}
	require.NoError(t, spec.Validate(s))
	h := newHandler(t, s)

	body := `
[[deceits]]
uris = ["/b"]
[[deceits.responses]]
code = 200
output = "b"
`
	ctx := newCtx(fasthttp.MethodPost, "/apate/specs/prepend", body)
	h.HandleAdmin(ctx, zap.NewNop())

	snapshot := h.registry.Snapshot()
	require.Len(t, snapshot.Deceits, 2)
	assert.Equal(t, "/b", snapshot.Deceits[0].URIs[0])
	assert.Equal(t, "/a", snapshot.Deceits[1].URIs[0])
}

func TestHandleAdmin_UnknownPathServesPlaceholder(t *testing.T) {
	h := newHandler(t, spec.Empty())
	ctx := newCtx(fasthttp.MethodGet, "/apate/ui/whatever", "")

	h.HandleAdmin(ctx, zap.NewNop())

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), "apate admin UI")
}
