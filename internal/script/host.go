// Package script implements the Rhai-style script host (spec.md §4.5).
// Apate substitutes github.com/dop251/goja, a JS VM, for Rhai: both are
// dynamically-typed, sandboxed-by-default, embeddable scripting languages
// that support host function injection, which is everything spec.md's
// "any embeddable scripting language" design note requires.
package script

import (
	"fmt"
	"time"

	"github.com/dop251/goja"

	"github.com/rustrum/apate/internal/reqctx"
	"github.com/rustrum/apate/internal/spec"
)

// Host evaluates scripts with a bounded step/time budget.
type Host struct {
	stepTimeout time.Duration
}

// NewHost creates a Host with the given per-evaluation time budget. A
// non-positive timeout falls back to a generous default.
func NewHost(stepTimeout time.Duration) *Host {
	if stepTimeout <= 0 {
		stepTimeout = 250 * time.Millisecond
	}
	return &Host{stepTimeout: stepTimeout}
}

// Error wraps a script parse/runtime/overrun failure.
type Error struct {
	Source string
	Err    error
}

func (e *Error) Error() string { return fmt.Sprintf("script error: %v", e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// EvalMatcher runs source as a boolean matcher. Per spec.md §4.3, any
// non-true result is falsy; the bool return is the match outcome and the
// error return is for logging only — callers must treat an error the same
// as a false match, never as a route failure.
func (h *Host) EvalMatcher(source string, rc *reqctx.RequestContext, args spec.Args) (bool, error) {
	v, err := h.eval(source, rc, args)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	return ok && b, nil
}

// EvalBody runs source as a response-body generator (Type rhai/script).
// The result must export to a string or []byte.
func (h *Host) EvalBody(source string, rc *reqctx.RequestContext, args spec.Args) ([]byte, error) {
	v, err := h.eval(source, rc, args)
	if err != nil {
		return nil, err
	}
	return toBytes(v)
}

// EvalProcessor runs a post-processor script against a ResponseContext.
// The processor is executed for its side effects on rc.Body/rc.ResponseCode
// via ctx.body/ctx.response_code; its own return value is discarded.
func (h *Host) EvalProcessor(source string, rc *reqctx.ResponseContext, args spec.Args) error {
	_, err := h.eval(source, rc, args)
	return err
}

func toBytes(v interface{}) ([]byte, error) {
	switch t := v.(type) {
	case []byte:
		return t, nil
	case string:
		return []byte(t), nil
	default:
		return nil, fmt.Errorf("script produced non-string/bytes result (%T)", v)
	}
}

// eval constructs a fresh runtime per call — evaluations never share VM
// state across requests, so concurrent callers never contend on one
// goja.Runtime (goja.Runtime is not safe for concurrent use).
func (h *Host) eval(source string, ctxObj interface{}, args spec.Args) (result interface{}, err error) {
	vm := goja.New()

	defer func() {
		if r := recover(); r != nil {
			err = &Error{Source: source, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	bindGlobals(vm, ctxObj, args)

	timer := time.AfterFunc(h.stepTimeout, func() {
		vm.Interrupt("script evaluation exceeded its time budget")
	})
	defer timer.Stop()

	v, runErr := vm.RunString(source)
	if runErr != nil {
		return nil, &Error{Source: source, Err: runErr}
	}
	return v.Export(), nil
}
