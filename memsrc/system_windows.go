//go:build windows

package memsrc

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

// SystemSource supplies page-granular memory via VirtualAlloc/VirtualFree,
// the Windows analogue of the POSIX mmap-backed SystemSource.
type SystemSource struct {
	mu   sync.Mutex
	regs map[uintptr]uintptr
}

// NewSystemSource constructs a ready-to-use SystemSource.
func NewSystemSource() *SystemSource {
	return &SystemSource{regs: make(map[uintptr]uintptr)}
}

func pageSize() uintptr {
	var si windows.SystemInfo
	windows.GetSystemInfo(&si)
	return uintptr(si.PageSize)
}

// Allocate reserves and commits n bytes (rounded up to a page) via
// VirtualAlloc. Returns (nil, false) on refusal.
func (s *SystemSource) Allocate(n uintptr) (unsafe.Pointer, bool) {
	if n == 0 {
		return nil, false
	}
	size := pageRoundUp(n, pageSize())

	addr, err := windows.VirtualAlloc(0, size, windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, false
	}

	s.mu.Lock()
	s.regs[addr] = size
	s.mu.Unlock()

	return unsafe.Pointer(addr), true
}

// Free releases the whole region starting at p.
func (s *SystemSource) Free(p unsafe.Pointer) {
	if p == nil {
		return
	}
	addr := uintptr(p)
	s.mu.Lock()
	_, ok := s.regs[addr]
	delete(s.regs, addr)
	s.mu.Unlock()
	if ok {
		_ = windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
	}
}

// FreeSized is equivalent to Free; VirtualFree with MEM_RELEASE always
// releases the entire region it was given by VirtualAlloc.
func (s *SystemSource) FreeSized(p unsafe.Pointer, _ uintptr) {
	s.Free(p)
}
