package script

import (
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"

	"github.com/rustrum/apate/internal/reqctx"
	"github.com/rustrum/apate/internal/scriptutil"
	"github.com/rustrum/apate/internal/spec"
)

// bindGlobals registers ctx, args, and the §4.4/§4.5 helper functions into
// a fresh runtime.
func bindGlobals(vm *goja.Runtime, ctxObj interface{}, args spec.Args) {
	_ = vm.Set("ctx", buildCtxObject(vm, ctxObj))
	_ = vm.Set("args", map[string]interface{}(args))

	_ = vm.Set("uuid_v4", scriptutil.UUIDv4)

	_ = vm.Set("random_num", func(call goja.FunctionCall) goja.Value {
		nums := make([]int64, len(call.Arguments))
		for i, a := range call.Arguments {
			nums[i] = a.ToInteger()
		}
		return vm.ToValue(scriptutil.RandomNum(nums...))
	})

	_ = vm.Set("random_hex", func(call goja.FunctionCall) goja.Value {
		if len(call.Arguments) == 0 {
			return vm.ToValue(scriptutil.RandomHex())
		}
		return vm.ToValue(scriptutil.RandomHex(int(call.Arguments[0].ToInteger())))
	})

	_ = vm.Set("to_json_blob", func(v interface{}) ([]byte, error) {
		return json.Marshal(v)
	})

	_ = vm.Set("from_json_blob", func(b []byte) (interface{}, error) {
		var v interface{}
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, fmt.Errorf("from_json_blob: %w", err)
		}
		return v, nil
	})

	if accessor, ok := ctxObj.(storageAccessor); ok {
		_ = vm.Set("storage_read", func(key string) interface{} {
			return accessor.StorageRead(key)
		})
		_ = vm.Set("storage_write", func(key string, value interface{}) interface{} {
			return accessor.StorageWrite(key, value)
		})
	}
}

// storageAccessor is satisfied by *reqctx.RequestContext (and, via
// embedding, *reqctx.ResponseContext).
type storageAccessor interface {
	StorageRead(key string) interface{}
	StorageWrite(key string, value interface{}) interface{}
}

// buildCtxObject exposes the RequestContext/ResponseContext surface
// (spec.md §4.6) as a plain goja object of bound closures, rather than
// relying on a Go struct field-name mapper, so the JS-facing method names
// match the spec's snake_case contract exactly.
func buildCtxObject(vm *goja.Runtime, ctxObj interface{}) *goja.Object {
	obj := vm.NewObject()

	var rc *reqctx.RequestContext
	switch t := ctxObj.(type) {
	case *reqctx.RequestContext:
		rc = t
	case *reqctx.ResponseContext:
		rc = t.RequestContext
	}

	if rc != nil {
		_ = obj.Set("method", rc.Method())
		_ = obj.Set("path", rc.Path())
		_ = obj.Set("load_headers", func() map[string]string { return rc.LoadHeaders() })
		_ = obj.Set("load_query_args", func() map[string]string { return rc.LoadQueryArgs() })
		_ = obj.Set("load_path_args", func() map[string]string { return rc.LoadPathArgs() })
		_ = obj.Set("load_body", func() []byte { return rc.LoadBody() })
		_ = obj.Set("load_body_string", func() string { return rc.LoadBodyString() })
		_ = obj.Set("load_body_json", func() (interface{}, error) { return rc.LoadBodyJSON() })
		_ = obj.Set("inc_counter", func(key string) int64 { return int64(rc.IncCounter(key)) })
	}

	if resp, ok := ctxObj.(*reqctx.ResponseContext); ok {
		// body/response_code are mutable: processor scripts assign
		// ctx.body = ... / ctx.response_code = ..., so both are wired as
		// real accessor properties rather than plain data properties.
		_ = obj.DefineAccessorProperty("body", vm.ToValue(func(goja.FunctionCall) goja.Value {
			return vm.ToValue(resp.Body)
		}), vm.ToValue(func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) > 0 {
				resp.Body = exportBytes(call.Arguments[0])
			}
			return goja.Undefined()
		}), goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_TRUE)

		_ = obj.DefineAccessorProperty("response_code", vm.ToValue(func(goja.FunctionCall) goja.Value {
			return vm.ToValue(int64(resp.ResponseCode))
		}), vm.ToValue(func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) > 0 {
				resp.ResponseCode = int(call.Arguments[0].ToInteger())
			}
			return goja.Undefined()
		}), goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_TRUE)
	}

	return obj
}

func exportBytes(v goja.Value) []byte {
	exported := v.Export()
	switch t := exported.(type) {
	case []byte:
		return t
	case string:
		return []byte(t)
	default:
		return []byte(fmt.Sprintf("%v", t))
	}
}
