//go:build linux || darwin || freebsd

package memsrc

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// SystemSource supplies page-granular memory directly from the kernel via
// mmap, the way eventloop's poller reaches past the standard library for
// epoll. Every mapping is rounded up to the system page size.
type SystemSource struct {
	mu   sync.Mutex
	maps map[uintptr][]byte
}

// NewSystemSource constructs a ready-to-use SystemSource.
func NewSystemSource() *SystemSource {
	return &SystemSource{maps: make(map[uintptr][]byte)}
}

// Allocate maps n bytes (rounded up to a page) anonymous and private.
// Returns (nil, false) if the kernel refuses the mapping.
func (s *SystemSource) Allocate(n uintptr) (unsafe.Pointer, bool) {
	if n == 0 {
		return nil, false
	}
	size := pageRoundUp(n, uintptr(unix.Getpagesize()))

	b, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, false
	}

	p := unsafe.Pointer(&b[0])
	s.mu.Lock()
	s.maps[uintptr(p)] = b
	s.mu.Unlock()

	return p, true
}

// Free releases one page starting at p, per the C1 contract that an
// unsized free on a page-granular source defaults to a single page.
func (s *SystemSource) Free(p unsafe.Pointer) {
	if p == nil {
		return
	}
	s.FreeSized(p, uintptr(unix.Getpagesize()))
}

// FreeSized unmaps exactly the page-rounded range starting at p.
func (s *SystemSource) FreeSized(p unsafe.Pointer, n uintptr) {
	if p == nil {
		return
	}
	size := pageRoundUp(n, uintptr(unix.Getpagesize()))

	s.mu.Lock()
	b, ok := s.maps[uintptr(p)]
	if ok {
		delete(s.maps, uintptr(p))
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	if len(b) < int(size) {
		size = uintptr(len(b))
	}
	_ = unix.Munmap(b[:size])
}
