package memsrc

import (
	"sync"
	"unsafe"
)

// MallocSource wraps Go's own allocator. Every allocation is backed by a
// byte slice whose header is pinned in a registry keyed by the returned
// address, so the block stays reachable (and therefore valid to
// dereference through the unsafe.Pointer) until it is freed. Unsized
// free is legal since the registry retains the size; sized free simply
// discards the caller-supplied size and drops the same reference.
type MallocSource struct {
	mu      sync.Mutex
	regions map[uintptr][]byte
}

// NewMallocSource constructs a ready-to-use MallocSource.
func NewMallocSource() *MallocSource {
	return &MallocSource{regions: make(map[uintptr][]byte)}
}

// Allocate returns n freshly zeroed bytes, or (nil, false) for n == 0.
func (s *MallocSource) Allocate(n uintptr) (unsafe.Pointer, bool) {
	if n == 0 {
		return nil, false
	}
	buf := make([]byte, n)
	p := unsafe.Pointer(&buf[0])

	s.mu.Lock()
	s.regions[uintptr(p)] = buf
	s.mu.Unlock()

	return p, true
}

// Free releases the block at p, dropping MallocSource's retained
// reference so the backing array becomes eligible for garbage
// collection. A nil p is a no-op.
func (s *MallocSource) Free(p unsafe.Pointer) {
	if p == nil {
		return
	}
	s.mu.Lock()
	delete(s.regions, uintptr(p))
	s.mu.Unlock()
}

// FreeSized releases the block at p. The size is accepted for interface
// conformance but not required, since MallocSource tracks size via its
// registry.
func (s *MallocSource) FreeSized(p unsafe.Pointer, _ uintptr) {
	s.Free(p)
}
