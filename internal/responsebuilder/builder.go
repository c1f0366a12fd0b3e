// Package responsebuilder implements the Response Builder (spec.md §4.7,
// C7): decodes a matched Response's Output by Type into a body, then runs
// its post-processor scripts in order, each free to rewrite the body and
// status code.
package responsebuilder

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/rustrum/apate/internal/metrics"
	"github.com/rustrum/apate/internal/reqctx"
	"github.com/rustrum/apate/internal/script"
	"github.com/rustrum/apate/internal/spec"
	"github.com/rustrum/apate/internal/template"
)

// Error is a BodyDecodeError or ProcessorError (spec.md §7): both carry an
// HTTP status (always 500 today) and a short diagnostic.
type Error struct {
	Status int
	Reason string
}

func (e *Error) Error() string { return e.Reason }

// Builder decodes Response bodies and runs post-processors.
type Builder struct {
	renderer *template.Renderer
	scripts  *script.Host
	metrics  *metrics.Collector
}

// New creates a Builder over the given Template Renderer and Script Host.
// metrics may be nil, in which case render/script failures are not recorded.
func New(renderer *template.Renderer, scripts *script.Host, metricsCollector *metrics.Collector) *Builder {
	return &Builder{renderer: renderer, scripts: scripts, metrics: metricsCollector}
}

// Build decodes resp.Output per resp.Type, runs resp.Processors in order,
// and returns the final status code, headers, and body. Headers is always
// resp.Headers verbatim; only processors may change the status code, via
// ctx.response_code.
func (b *Builder) Build(resp *spec.Response, rc *reqctx.RequestContext, args spec.Args) (code int, headers map[string]string, body []byte, err error) {
	body, err = b.decode(resp, rc, args)
	if err != nil {
		return 0, nil, nil, err
	}

	code = resp.Code
	for _, source := range resp.Processors {
		respCtx := reqctx.NewResponseContext(rc, body, code)
		if err := b.scripts.EvalProcessor(source, respCtx, args); err != nil {
			if b.metrics != nil {
				b.metrics.RecordScriptError("processor", err)
			}
			return 0, nil, nil, &Error{Status: 500, Reason: fmt.Sprintf("processor failed: %v", err)}
		}
		body = respCtx.Body
		code = respCtx.EffectiveCode(code)
	}

	return code, resp.Headers, body, nil
}

func (b *Builder) decode(resp *spec.Response, rc *reqctx.RequestContext, args spec.Args) ([]byte, error) {
	switch resp.Type {
	case "", spec.TypeString:
		return []byte(resp.Output), nil

	case spec.TypeHex:
		cleaned := strings.Join(strings.Fields(resp.Output), "")
		decoded, err := hex.DecodeString(cleaned)
		if err != nil {
			return nil, &Error{Status: 500, Reason: fmt.Sprintf("invalid hex output: %v", err)}
		}
		return decoded, nil

	case spec.TypeBase64:
		decoded, err := base64.StdEncoding.DecodeString(resp.Output)
		if err != nil {
			return nil, &Error{Status: 500, Reason: fmt.Sprintf("invalid base64 output: %v", err)}
		}
		return decoded, nil

	case spec.TypeJinja:
		rendered, err := b.renderer.Render(resp.Output, rc, args)
		if err != nil {
			if b.metrics != nil {
				b.metrics.RecordTemplateError(err)
			}
			return nil, &Error{Status: 500, Reason: fmt.Sprintf("template render failed: %v", err)}
		}
		return []byte(rendered), nil

	case spec.TypeRhai, spec.TypeScript:
		out, err := b.scripts.EvalBody(resp.Output, rc, args)
		if err != nil {
			if b.metrics != nil {
				b.metrics.RecordScriptError("body", err)
			}
			return nil, &Error{Status: 500, Reason: fmt.Sprintf("script body failed: %v", err)}
		}
		return out, nil

	default:
		return nil, &Error{Status: 500, Reason: fmt.Sprintf("unknown response type %q", resp.Type)}
	}
}
