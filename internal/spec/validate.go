package spec

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/rustrum/apate/pkg/uripattern"
)

var validResponseTypes = map[ResponseType]bool{
	TypeString: true,
	TypeHex:    true,
	TypeBase64: true,
	TypeJinja:  true,
	TypeRhai:   true,
	TypeScript: true,
}

// Validate checks a Specification against the invariants spec.md requires
// (every Deceit has at least one URI and one Response, URI patterns compile,
// response types are known) and, on success, compiles and caches each
// Deceit's URI patterns. A failed validation never mutates spec in a way
// that would leave a partially-usable tree installed by the Registry: the
// caller is expected to discard spec entirely on error.
func Validate(s *Specification) error {
	collector := NewErrorCollector()

	for i := range s.Deceits {
		validateDeceit(&s.Deceits[i], i, collector)
	}

	if collector.HasErrors() {
		return fmt.Errorf("spec validation failed: %s", collector.summarize())
	}
	return nil
}

func validateDeceit(d *Deceit, index int, collector *ErrorCollector) {
	loc := fmt.Sprintf("deceits[%d]", index)

	if len(d.URIs) == 0 {
		collector.Add(loc, 0, "deceit has no uris")
	}
	if len(d.Responses) == 0 {
		collector.Add(loc, 0, "deceit has no responses")
	}

	compiled := make([]*uripattern.Pattern, 0, len(d.URIs))
	for _, u := range d.URIs {
		p, err := uripattern.Compile(u)
		if err != nil {
			collector.Add(loc, 0, "invalid uri pattern %q: %v", u, err)
			continue
		}
		compiled = append(compiled, p)
	}
	d.compiledURIs = compiled

	for _, m := range d.Methods {
		if !isKnownMethod(m) {
			collector.AddWarning(loc, 0, "unusual HTTP method %q", m)
		}
	}

	for _, m := range d.Matchers {
		validateMatcher(m, loc, collector)
	}

	for ri := range d.Responses {
		validateResponse(&d.Responses[ri], fmt.Sprintf("%s.responses[%d]", loc, ri), collector)
	}
}

func validateResponse(r *Response, loc string, collector *ErrorCollector) {
	if r.Type == "" {
		r.Type = TypeString
	}
	if !validResponseTypes[r.Type] {
		collector.Add(loc, 0, "unknown response type %q", r.Type)
	}
	if r.Code == 0 {
		r.Code = http.StatusOK
	}
	for _, m := range r.Matchers {
		validateMatcher(m, loc, collector)
	}
	for pi, p := range r.Processors {
		if strings.TrimSpace(p) == "" {
			collector.Add(loc, 0, "processor[%d] has empty source", pi)
		}
	}
}

func validateMatcher(m MatcherExpr, loc string, collector *ErrorCollector) {
	if m.Kind != "" && m.Kind != "script" {
		collector.Add(loc, 0, "unknown matcher kind %q", m.Kind)
	}
	if strings.TrimSpace(m.Source) == "" {
		collector.Add(loc, 0, "matcher has empty source")
	}
}

func isKnownMethod(m string) bool {
	switch strings.ToUpper(m) {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodConnect,
		http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}

// summarize renders the collected errors as a single-line-per-error string,
// short enough to be returned as an admin diagnostic body.
func (ec *ErrorCollector) summarize() string {
	var b strings.Builder
	for i, e := range ec.errors {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(e.File)
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}
