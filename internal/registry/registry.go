// Package registry implements the Specification Registry (spec.md §4.8,
// C8): the hot-swappable store for the single active Specification. It
// mirrors the teacher's EGConfigManager hot-swap pattern — an
// atomic.Pointer guarded on the write side by a mutex, so readers never
// block and never observe a partially-built tree — generalized from a
// "hosts cache" to an active mock specification.
package registry

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rustrum/apate/internal/spec"
)

// Registry holds the single active Specification, swapped atomically.
type Registry struct {
	cache   atomic.Pointer[spec.Specification]
	writeMu sync.Mutex
}

// New creates a Registry seeded with initial. initial is validated; a nil
// or invalid initial falls back to the empty Specification.
func New(initial *spec.Specification) *Registry {
	r := &Registry{}
	if initial == nil {
		initial = spec.Empty()
	}
	if err := spec.Validate(initial); err != nil {
		initial = spec.Empty()
	}
	r.cache.Store(initial)
	return r
}

// Snapshot returns the currently active Specification. The caller should
// hold this one pointer for the lifetime of a single request: Snapshot
// itself never blocks on a concurrent writer.
func (r *Registry) Snapshot() *spec.Specification {
	return r.cache.Load()
}

// Replace validates next and, on success, installs it as the active
// Specification in full. On validation failure the active Specification is
// left untouched and the error is returned.
func (r *Registry) Replace(next *spec.Specification) error {
	return r.swap(func(_ *spec.Specification) *spec.Specification {
		return next
	})
}

// Append validates next and installs active ++ next (active's Deceits
// first, so existing routes keep priority).
func (r *Registry) Append(next *spec.Specification) error {
	return r.swap(func(active *spec.Specification) *spec.Specification {
		return spec.Concatenate(active, next)
	})
}

// Prepend validates next and installs next ++ active (next's Deceits take
// priority over the routes already active).
func (r *Registry) Prepend(next *spec.Specification) error {
	return r.swap(func(active *spec.Specification) *spec.Specification {
		return spec.Concatenate(next, active)
	})
}

// swap serializes with other writers, builds the candidate Specification
// from the writer-held active snapshot, validates it, and only then
// installs it — so a concurrent reader in Snapshot never sees a
// half-applied mutation, and a failed mutation never corrupts the active
// pointer.
func (r *Registry) swap(build func(active *spec.Specification) *spec.Specification) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	candidate := build(r.cache.Load())
	if err := spec.Validate(candidate); err != nil {
		return fmt.Errorf("registry: candidate specification invalid: %w", err)
	}
	r.cache.Store(candidate)
	return nil
}
