package memsrc

import (
	"math/bits"
	"unsafe"
)

// Allocator is a thin composable front over a Source. It adds
// zero-filled contiguous allocation, copy-and-free reallocation, and the
// sentinel contracts every downstream allocator in this module honors.
type Allocator struct {
	Source Source
}

// New wraps src in an Allocator.
func New(src Source) *Allocator {
	return &Allocator{Source: src}
}

// Allocate returns n bytes from the underlying source. allocate(0) is
// defined to always return none.
func (a *Allocator) Allocate(n uintptr) (unsafe.Pointer, bool) {
	if n == 0 {
		return nil, false
	}
	return a.Source.Allocate(n)
}

// AllocateContiguous allocates count*stride bytes, zero-filled, failing
// with ok=false if the multiplication would overflow a uintptr.
func (a *Allocator) AllocateContiguous(count, stride uintptr) (unsafe.Pointer, bool) {
	hi, n := bits.Mul64(uint64(count), uint64(stride))
	if hi != 0 || uint64(uintptr(n)) != n {
		return nil, false
	}
	total := uintptr(n)
	if total == 0 {
		return nil, false
	}

	p, ok := a.Source.Allocate(total)
	if !ok {
		return nil, false
	}
	memclr(p, total)
	return p, true
}

// memclr zero-fills n bytes starting at p.
func memclr(p unsafe.Pointer, n uintptr) {
	b := unsafe.Slice((*byte)(p), n)
	for i := range b {
		b[i] = 0
	}
}

// Reallocate always allocates new, copies min(new,old) bytes (or
// zero-fills if oldBytes is unknown), and frees the old block. It never
// resizes in place.
//
// Sentinel contracts: reallocate(none, 0) == none; reallocate(p, 0)
// frees p and returns none.
func (a *Allocator) Reallocate(p unsafe.Pointer, newBytes uintptr, oldBytes ...uintptr) (unsafe.Pointer, bool) {
	if p == nil && newBytes == 0 {
		return nil, false
	}
	if newBytes == 0 {
		if len(oldBytes) > 0 {
			a.Source.FreeSized(p, oldBytes[0])
		} else {
			a.Source.Free(p)
		}
		return nil, false
	}

	np, ok := a.Source.Allocate(newBytes)
	if !ok {
		return nil, false
	}

	if p != nil {
		var old uintptr
		haveOld := len(oldBytes) > 0
		if haveOld {
			old = oldBytes[0]
		}

		if haveOld {
			n := old
			if newBytes < n {
				n = newBytes
			}
			copy(unsafe.Slice((*byte)(np), newBytes), unsafe.Slice((*byte)(p), n))
			a.Source.FreeSized(p, old)
		} else {
			memclr(np, newBytes)
			a.Source.Free(p)
		}
	}

	return np, true
}

// Free releases p with no known size. free(none) is a no-op.
func (a *Allocator) Free(p unsafe.Pointer) {
	if p == nil {
		return
	}
	a.Source.Free(p)
}

// FreeSized releases p, known to be n bytes. free(none, n) is a no-op.
func (a *Allocator) FreeSized(p unsafe.Pointer, n uintptr) {
	if p == nil {
		return
	}
	a.Source.FreeSized(p, n)
}
