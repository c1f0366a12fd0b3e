package matcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/rustrum/apate/internal/reqctx"
	"github.com/rustrum/apate/internal/script"
	"github.com/rustrum/apate/internal/spec"
	"github.com/rustrum/apate/internal/store"
)

func newCtx(t *testing.T) *reqctx.RequestContext {
	t.Helper()
	var ctx fasthttp.RequestCtx
	var req fasthttp.Request
	req.Header.SetMethod("GET")
	req.SetRequestURI("/x")
	ctx.Init(&req, nil, nil)
	return reqctx.New(&ctx, nil, store.New())
}

func newEngine() *Engine {
	return New(script.NewHost(100*time.Millisecond), zap.NewNop(), nil)
}

func TestEvalAll_EmptyIsTrue(t *testing.T) {
	e := newEngine()
	assert.True(t, e.EvalAll(newCtx(t), nil, nil))
}

func TestEvalAll_AllPass(t *testing.T) {
	e := newEngine()
	exprs := []spec.MatcherExpr{{Kind: "script", Source: "true"}, {Kind: "script", Source: "1 == 1"}}
	assert.True(t, e.EvalAll(newCtx(t), nil, exprs))
}

func TestEvalAll_ShortCircuitsOnFirstFailure(t *testing.T) {
	e := newEngine()
	exprs := []spec.MatcherExpr{{Kind: "script", Source: "false"}, {Kind: "script", Source: "true"}}
	assert.False(t, e.EvalAll(newCtx(t), nil, exprs))
}

func TestEvalAll_ScriptErrorIsFalsy(t *testing.T) {
	e := newEngine()
	exprs := []spec.MatcherExpr{{Kind: "script", Source: "this is not valid script((("}}
	assert.False(t, e.EvalAll(newCtx(t), nil, exprs))
}

func TestEvalAll_NonTrueValuesAreFalsy(t *testing.T) {
	e := newEngine()
	for _, src := range []string{"false", "0", "1", "\"true\""} {
		exprs := []spec.MatcherExpr{{Kind: "script", Source: src}}
		assert.False(t, e.EvalAll(newCtx(t), nil, exprs), "source %q", src)
	}
}
