// Package reqctx implements the ephemeral per-request/per-processor
// context exposed to matchers, templates, and scripts: lazily-populated,
// idempotent views over the inbound fasthttp request plus the shared KV
// and counter store.
package reqctx

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/valyala/fasthttp"

	"github.com/rustrum/apate/internal/store"
)

// RequestContext is created once per inbound request and discarded when
// the response is emitted. Every loader is lazy and memoized: repeated
// calls within one request return the same cached result.
type RequestContext struct {
	httpCtx  *fasthttp.RequestCtx
	pathArgs map[string]string
	shared   *store.Store

	headers    map[string]string
	query      map[string]string
	bodyBytes  []byte
	bodyString *string
	bodyJSON   interface{}
	bodyJSONOk bool
}

// New creates a RequestContext wrapping httpCtx. pathArgs comes from the
// URI pattern that matched the owning Deceit (may be nil).
func New(httpCtx *fasthttp.RequestCtx, pathArgs map[string]string, shared *store.Store) *RequestContext {
	return &RequestContext{
		httpCtx:  httpCtx,
		pathArgs: pathArgs,
		shared:   shared,
	}
}

// Method returns the HTTP method, e.g. "GET".
func (rc *RequestContext) Method() string {
	return string(rc.httpCtx.Method())
}

// Path returns the request path.
func (rc *RequestContext) Path() string {
	return string(rc.httpCtx.Path())
}

// LoadHeaders returns the request headers as a map with lowercase keys.
// Repeated headers are collapsed per HTTP semantics (comma-joined).
func (rc *RequestContext) LoadHeaders() map[string]string {
	if rc.headers != nil {
		return rc.headers
	}

	headers := make(map[string]string)
	rc.httpCtx.Request.Header.VisitAll(func(key, value []byte) {
		k := strings.ToLower(string(key))
		if existing, ok := headers[k]; ok {
			headers[k] = existing + ", " + string(value)
		} else {
			headers[k] = string(value)
		}
	})
	rc.headers = headers
	return rc.headers
}

// LoadQueryArgs returns the parsed query string as a map, collapsing
// repeated keys to their last value.
func (rc *RequestContext) LoadQueryArgs() map[string]string {
	if rc.query != nil {
		return rc.query
	}

	query := make(map[string]string)
	rc.httpCtx.QueryArgs().VisitAll(func(key, value []byte) {
		query[string(key)] = string(value)
	})
	rc.query = query
	return rc.query
}

// LoadPathArgs returns the named-capture values bound by the matched URI
// pattern.
func (rc *RequestContext) LoadPathArgs() map[string]string {
	if rc.pathArgs == nil {
		return map[string]string{}
	}
	return rc.pathArgs
}

// LoadBody returns the raw request body bytes.
func (rc *RequestContext) LoadBody() []byte {
	if rc.bodyBytes == nil {
		rc.bodyBytes = append([]byte(nil), rc.httpCtx.Request.Body()...)
	}
	return rc.bodyBytes
}

// LoadBodyString lossily decodes the body as UTF-8.
func (rc *RequestContext) LoadBodyString() string {
	if rc.bodyString == nil {
		s := sanitizeUTF8(rc.LoadBody())
		rc.bodyString = &s
	}
	return *rc.bodyString
}

// LoadBodyJSON parses the body as JSON, returning the decoded value. The
// result is cached; subsequent calls within the request return the same
// parsed value even if the caller mutates it.
func (rc *RequestContext) LoadBodyJSON() (interface{}, error) {
	if rc.bodyJSONOk {
		return rc.bodyJSON, nil
	}

	var v interface{}
	if err := json.Unmarshal(rc.LoadBody(), &v); err != nil {
		return nil, err
	}
	rc.bodyJSON = v
	rc.bodyJSONOk = true
	return rc.bodyJSON, nil
}

// IncCounter increments and returns the previous value of the named
// counter in the shared store.
func (rc *RequestContext) IncCounter(key string) uint64 {
	return rc.shared.IncCounter(key)
}

// StorageRead returns the previously stored value for key, or the missing
// sentinel.
func (rc *RequestContext) StorageRead(key string) interface{} {
	v, _ := rc.shared.Read(key)
	return v
}

// StorageWrite stores value under key and returns whatever was previously
// stored there.
func (rc *RequestContext) StorageWrite(key string, value interface{}) interface{} {
	prev, _ := rc.shared.Write(key, value)
	return prev
}

func sanitizeUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "�")
}
