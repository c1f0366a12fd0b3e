// Package scriptutil implements the helper functions shared by the
// Template Renderer (C5) and Script Host (C6): random_num, random_hex, and
// uuid_v4 (spec.md §4.4/§4.5). Both engines bind the same semantics so a
// route author sees identical behavior whether a value comes from a Jinja
// template or a script.
package scriptutil

import (
	"crypto/rand"
	"encoding/hex"
	mathrand "math/rand"

	"github.com/google/uuid"
)

// RandomNum implements random_num()/random_num(max)/random_num(a, b) per
// spec.md §4.4: no-arg returns a non-negative integer in the full platform
// integer range; one arg returns [0, max), or 0 when max <= 0; two args
// return [min(a,b), max(a,b)), or that value itself when a == b.
func RandomNum(args ...int64) int64 {
	switch len(args) {
	case 0:
		n := mathrand.Int63()
		return n
	case 1:
		max := args[0]
		if max <= 0 {
			return 0
		}
		return mathrand.Int63n(max)
	default:
		a, b := args[0], args[1]
		lo, hi := a, b
		if lo > hi {
			lo, hi = hi, lo
		}
		if lo == hi {
			return lo
		}
		return lo + mathrand.Int63n(hi-lo)
	}
}

// RandomHex implements random_hex()/random_hex(n_bytes): n_bytes of
// crypto-random data, hex-encoded. Defaults to 16 bytes (32 hex chars).
func RandomHex(nBytes ...int) string {
	n := 16
	if len(nBytes) > 0 && nBytes[0] > 0 {
		n = nBytes[0]
	}
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// UUIDv4 returns a fresh RFC-4122 v4 UUID string.
func UUIDv4() string {
	return uuid.NewString()
}
