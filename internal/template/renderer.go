// Package template implements the Jinja-style Template Renderer (spec.md
// §4.4, C5) over github.com/nikolalohinski/gonja/v2. A response body with
// Type "jinja" is compiled and executed through this package; response
// header values are not rendered. A template with no interpolations renders
// byte-for-byte unchanged, per spec.md §8.
package template

import (
	"fmt"

	"github.com/nikolalohinski/gonja/v2"
	"github.com/nikolalohinski/gonja/v2/exec"

	"github.com/rustrum/apate/internal/reqctx"
	"github.com/rustrum/apate/internal/scriptutil"
	"github.com/rustrum/apate/internal/spec"
)

// Renderer compiles and executes Jinja2-compatible templates.
type Renderer struct{}

// NewRenderer creates a Renderer. It holds no state: every Render call
// compiles its source fresh, since response bodies are rarely reused
// enough to justify a template cache.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render executes source as a Jinja template against rc and args, exposing
// ctx, args, and the random_num/random_hex/uuid_v4 globals (spec.md §4.4).
func (r *Renderer) Render(source string, rc *reqctx.RequestContext, args spec.Args) (string, error) {
	tpl, err := gonja.FromString(source)
	if err != nil {
		return "", fmt.Errorf("template parse: %w", err)
	}

	data := exec.NewContext(map[string]interface{}{
		"ctx":  ctxBindingMap(rc),
		"args": map[string]interface{}(args),
		"random_num": func(nums ...int64) int64 {
			return scriptutil.RandomNum(nums...)
		},
		"random_hex": func(n ...int) string {
			return scriptutil.RandomHex(n...)
		},
		"uuid_v4": scriptutil.UUIDv4,
	})

	out, err := tpl.ExecuteToString(data)
	if err != nil {
		return "", fmt.Errorf("template execute: %w", err)
	}
	return out, nil
}

// ctxBindingMap exposes RequestContext as a plain map of snake_case
// closures. method, path, the load_* loaders and inc_counter use the same
// names the Script Host (internal/script) binds onto its ctx object;
// storage_read/storage_write sit on ctx here, whereas scripts get them as
// global functions.
func ctxBindingMap(rc *reqctx.RequestContext) map[string]interface{} {
	return map[string]interface{}{
		"method":           rc.Method(),
		"path":             rc.Path(),
		"load_headers":     func() map[string]string { return rc.LoadHeaders() },
		"load_query_args":  func() map[string]string { return rc.LoadQueryArgs() },
		"load_path_args":   func() map[string]string { return rc.LoadPathArgs() },
		"load_body":        func() []byte { return rc.LoadBody() },
		"load_body_string": func() string { return rc.LoadBodyString() },
		"load_body_json":   func() (interface{}, error) { return rc.LoadBodyJSON() },
		"inc_counter":      func(key string) int64 { return int64(rc.IncCounter(key)) },
		"storage_read":     func(key string) interface{} { return rc.StorageRead(key) },
		"storage_write": func(key string, v interface{}) interface{} {
			return rc.StorageWrite(key, v)
		},
	}
}
