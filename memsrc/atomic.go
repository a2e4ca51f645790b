package memsrc

import (
	"unsafe"

	"github.com/joeycumines/corelib/corelock"
)

// Atomic serializes every operation on an inner allocator behind a spin
// lock, establishing the thread-safe allocator capability tcache's
// Threaded allocator requires of its parent. A sync.Mutex is
// deliberately not used here: this layer calls for a spin primitive,
// reserving blocking waits for the futex's kernel-wait fallback and
// the worker's wait_lock.
type Atomic struct {
	inner *Allocator
	lock  corelock.SpinLock
}

// NewAtomic wraps inner behind a spin lock.
func NewAtomic(inner *Allocator) *Atomic {
	return &Atomic{inner: inner}
}

// Allocate serializes an allocate call through the spin lock.
func (a *Atomic) Allocate(n uintptr) (unsafe.Pointer, bool) {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.inner.Allocate(n)
}

// AllocateContiguous serializes a zero-filled contiguous allocate call.
func (a *Atomic) AllocateContiguous(count, stride uintptr) (unsafe.Pointer, bool) {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.inner.AllocateContiguous(count, stride)
}

// Free serializes an unsized free.
func (a *Atomic) Free(p unsafe.Pointer) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.inner.Free(p)
}

// FreeSized serializes a sized free.
func (a *Atomic) FreeSized(p unsafe.Pointer, n uintptr) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.inner.FreeSized(p, n)
}
