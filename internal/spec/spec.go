// Package spec defines Apate's specification model: the immutable,
// TOML-sourced tree of Deceits (routes), Matchers, and Responses that the
// dispatcher matches inbound requests against.
package spec

import "github.com/rustrum/apate/pkg/uripattern"

// ResponseType selects how a Response's Output is turned into bytes.
type ResponseType string

const (
	TypeString ResponseType = "string"
	TypeHex    ResponseType = "hex"
	TypeBase64 ResponseType = "base64"
	TypeJinja  ResponseType = "jinja"
	TypeRhai   ResponseType = "rhai"
	TypeScript ResponseType = "script"
)

// Args is the opaque user-defined bag surfaced to scripts/templates as `args`.
type Args map[string]interface{}

// MatcherExpr is a scripted boolean predicate gating a Deceit or a Response
// variant. Apate only has one matcher kind today (a script source that must
// evaluate to the boolean `true`); Kind is kept so the TOML schema can grow
// built-in predicate kinds without a breaking change.
type MatcherExpr struct {
	Kind   string `toml:"kind"`
	Source string `toml:"source"`
}

// Response is one candidate body/status for a matched Deceit.
type Response struct {
	ID         string            `toml:"id,omitempty"`
	Code       int               `toml:"code"`
	Headers    map[string]string `toml:"headers"`
	Output     string            `toml:"output"`
	Type       ResponseType      `toml:"type"`
	Matchers   []MatcherExpr     `toml:"matchers"`
	Processors []string          `toml:"processors"`
}

// Deceit is a single route: the URIs/methods/headers it accepts, the
// matchers that must all pass, and the ordered Response candidates.
type Deceit struct {
	ID              string            `toml:"id,omitempty"`
	URIs            []string          `toml:"uris"`
	Methods         []string          `toml:"methods"`
	RequiredHeaders map[string]string `toml:"required_headers"`
	Matchers        []MatcherExpr     `toml:"matchers"`
	Responses       []Response        `toml:"responses"`
	Args            Args              `toml:"args"`

	// compiledURIs caches the compiled form of URIs, populated by Validate.
	// A zero-value Deceit (compiledURIs == nil) falls back to compiling on
	// the fly so ad-hoc Deceits built in tests still match correctly.
	compiledURIs []*uripattern.Pattern
}

// CompiledURIs returns the compiled URI patterns for this Deceit, compiling
// lazily (and uncached) if Validate was never called.
func (d *Deceit) CompiledURIs() []*uripattern.Pattern {
	if d.compiledURIs != nil {
		return d.compiledURIs
	}
	compiled := make([]*uripattern.Pattern, 0, len(d.URIs))
	for _, u := range d.URIs {
		if p, err := uripattern.Compile(u); err == nil {
			compiled = append(compiled, p)
		}
	}
	return compiled
}

// Specification is the full ordered list of Deceits currently active.
// Insertion order is semantically significant: earlier Deceits are tried
// first and ties go to the first match.
type Specification struct {
	Deceits []Deceit `toml:"deceits"`
}

// Concatenate returns a new Specification whose Deceit list is the
// concatenation of a's and b's, in that order. Neither input is mutated.
func Concatenate(a, b *Specification) *Specification {
	out := make([]Deceit, 0, len(a.Deceits)+len(b.Deceits))
	out = append(out, a.Deceits...)
	out = append(out, b.Deceits...)
	return &Specification{Deceits: out}
}

// Empty returns a valid, empty Specification (no Deceits: every request 404s).
func Empty() *Specification {
	return &Specification{Deceits: nil}
}
