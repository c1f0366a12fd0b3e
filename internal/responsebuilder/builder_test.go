package responsebuilder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/rustrum/apate/internal/reqctx"
	"github.com/rustrum/apate/internal/script"
	"github.com/rustrum/apate/internal/spec"
	"github.com/rustrum/apate/internal/store"
	"github.com/rustrum/apate/internal/template"
)

func newBuilder() *Builder {
	return New(template.NewRenderer(), script.NewHost(100*time.Millisecond), nil)
}

func newCtx(t *testing.T, method, path string) *reqctx.RequestContext {
	t.Helper()
	var ctx fasthttp.RequestCtx
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(path)
	ctx.Init(&req, nil, nil)
	return reqctx.New(&ctx, nil, store.New())
}

func TestBuild_StringDefault(t *testing.T) {
	b := newBuilder()
	resp := &spec.Response{Code: 200, Output: "hello"}
	code, _, body, err := b.Build(resp, newCtx(t, "GET", "/x"), nil)
	require.NoError(t, err)
	assert.Equal(t, 200, code)
	assert.Equal(t, "hello", string(body))
}

func TestBuild_HexRoundTrip(t *testing.T) {
	b := newBuilder()
	resp := &spec.Response{Code: 200, Type: spec.TypeHex, Output: "48 65 6C 6C 6F"}
	_, _, body, err := b.Build(resp, newCtx(t, "GET", "/x"), nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello", string(body))
}

func TestBuild_HexInvalid(t *testing.T) {
	b := newBuilder()
	resp := &spec.Response{Code: 200, Type: spec.TypeHex, Output: "not hex zz"}
	_, _, _, err := b.Build(resp, newCtx(t, "GET", "/x"), nil)
	assert.Error(t, err)
}

func TestBuild_Base64RoundTrip(t *testing.T) {
	b := newBuilder()
	resp := &spec.Response{Code: 200, Type: spec.TypeBase64, Output: "SGVsbG8="}
	_, _, body, err := b.Build(resp, newCtx(t, "GET", "/x"), nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x48, 0x65, 0x6C, 0x6C, 0x6F}, body)
}

func TestBuild_Base64Invalid(t *testing.T) {
	b := newBuilder()
	resp := &spec.Response{Code: 200, Type: spec.TypeBase64, Output: "not-base64!!"}
	_, _, _, err := b.Build(resp, newCtx(t, "GET", "/x"), nil)
	assert.Error(t, err)
}

func TestBuild_JinjaNoInterpolationUnchanged(t *testing.T) {
	b := newBuilder()
	resp := &spec.Response{Code: 200, Type: spec.TypeJinja, Output: "plain output, no templating"}
	_, _, body, err := b.Build(resp, newCtx(t, "GET", "/x"), nil)
	require.NoError(t, err)
	assert.Equal(t, "plain output, no templating", string(body))
}

func TestBuild_JinjaPathCapture(t *testing.T) {
	b := newBuilder()
	var ctx fasthttp.RequestCtx
	var req fasthttp.Request
	req.SetRequestURI("/u/42")
	ctx.Init(&req, nil, nil)
	rc := reqctx.New(&ctx, map[string]string{"id": "42"}, store.New())

	resp := &spec.Response{Code: 200, Type: spec.TypeJinja, Output: "hi {{ ctx.load_path_args()['id'] }}"}
	_, _, body, err := b.Build(resp, rc, nil)
	require.NoError(t, err)
	assert.Equal(t, "hi 42", string(body))
}

func TestBuild_ScriptNoInterpolationUnchanged(t *testing.T) {
	b := newBuilder()
	resp := &spec.Response{Code: 200, Type: spec.TypeScript, Output: `"plain script output"`}
	_, _, body, err := b.Build(resp, newCtx(t, "GET", "/x"), nil)
	require.NoError(t, err)
	assert.Equal(t, "plain script output", string(body))
}

func TestBuild_PostProcessorRewrite(t *testing.T) {
	b := newBuilder()
	resp := &spec.Response{
		Code:   200,
		Output: "raw",
		Processors: []string{
			`ctx.body = to_json_blob({wrapped: "raw"}); ctx.response_code = 201;`,
		},
	}
	code, _, body, err := b.Build(resp, newCtx(t, "GET", "/x"), nil)
	require.NoError(t, err)
	assert.Equal(t, 201, code)
	assert.JSONEq(t, `{"wrapped":"raw"}`, string(body))
}

func TestBuild_ProcessorFailureAbortsChain(t *testing.T) {
	b := newBuilder()
	resp := &spec.Response{
		Code:   200,
		Output: "raw",
		Processors: []string{
			`this is not valid script(((`,
			`ctx.body = "should not run";`,
		},
	}
	_, _, _, err := b.Build(resp, newCtx(t, "GET", "/x"), nil)
	assert.Error(t, err)
}

func TestBuild_ProcessorChainRunsInOrder(t *testing.T) {
	b := newBuilder()
	resp := &spec.Response{
		Code:   200,
		Output: "0",
		Processors: []string{
			`storage_write("order", "first"); ctx.body = "1";`,
			`ctx.body = (storage_read("order") == "first") ? "1-2" : "bad";`,
		},
	}
	_, _, body, err := b.Build(resp, newCtx(t, "GET", "/x"), nil)
	require.NoError(t, err)
	assert.Equal(t, "1-2", string(body))
}

func TestBuild_UnknownType(t *testing.T) {
	b := newBuilder()
	resp := &spec.Response{Code: 200, Type: "bogus", Output: "x"}
	_, _, _, err := b.Build(resp, newCtx(t, "GET", "/x"), nil)
	assert.Error(t, err)
}

func TestBuild_HeadersPassThrough(t *testing.T) {
	b := newBuilder()
	resp := &spec.Response{Code: 200, Output: "x", Headers: map[string]string{"X-Foo": "bar"}}
	_, headers, _, err := b.Build(resp, newCtx(t, "GET", "/x"), nil)
	require.NoError(t, err)
	assert.Equal(t, "bar", headers["X-Foo"])
}
