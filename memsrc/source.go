package memsrc

import "unsafe"

// Source is the capability set every memory source implements: raw
// allocate, unsized free, and sized free. Sized free is mandatory for
// page-mapped sources; unsized free is only meaningful for sources that
// retain per-allocation size internally (MallocSource).
type Source interface {
	// Allocate returns n bytes, or (nil, false) if the source refused.
	Allocate(n uintptr) (unsafe.Pointer, bool)
	// Free releases a block previously returned by Allocate, with no size
	// given. A nil p is a no-op.
	Free(p unsafe.Pointer)
	// FreeSized releases a block of the given size. A nil p is a no-op.
	FreeSized(p unsafe.Pointer, n uintptr)
}
