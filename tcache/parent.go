// Package tcache implements the per-goroutine Thread Cache and the
// Threaded Allocator front-end over it (C7). Go has no native
// thread-local storage, so the cache is keyed by the calling goroutine's
// runtime id (see goroutineid), which is the idiom the rest of this
// module's lineage assumes is available.
package tcache

import (
	"sync"
	"unsafe"
)

// Parent is the capability a thread cache's backing allocator must
// provide: the thread-safe allocator contract (memsrc.Atomic or
// equivalent), called only on slab refill and slab flush-back, never on
// the served-from-cache hot path.
type Parent interface {
	Allocate(n uintptr) (unsafe.Pointer, bool)
	Free(p unsafe.Pointer)
	FreeSized(p unsafe.Pointer, n uintptr)
}

// ParentHandle identifies a parent allocator by pointer identity and
// carries a generation counter, resolving the replace/drop Open Question
// in favor of registry-free, lazy invalidation: every cache entry
// records the generation it was built against, and revalidates that
// against the handle on each access rather than the handle having to
// track down and mutate every thread's cache entry directly.
type ParentHandle struct {
	mu         sync.RWMutex
	generation uint64
	parent     Parent
}

// NewParentHandle wraps p, the initial parent allocator.
func NewParentHandle(p Parent) *ParentHandle {
	return &ParentHandle{parent: p}
}

// snapshot returns the current parent (nil if dropped) and generation.
func (h *ParentHandle) snapshot() (Parent, uint64) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.parent, h.generation
}

// Replace swaps in a new parent allocator, bumping the generation so
// every thread's cache entry for this handle is lazily invalidated and
// re-created against p on next access.
func (h *ParentHandle) Replace(p Parent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.parent = p
	h.generation++
}

// Drop invalidates every thread's cache entry for this handle. A
// subsequent access by any thread observes a missing parent and fails
// rather than silently reallocating against stale memory.
func (h *ParentHandle) Drop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.parent = nil
	h.generation++
}
