// Package memsrc implements the memory-source and allocator layers: raw
// page-granular/malloc-style sources (C1), a thin composable Allocator
// front (C2), a budget-enforcing Constrained allocator (C3), a
// block-size-rounding BlockRounding allocator (C4), and a spin-lock
// serialized Atomic allocator (C6).
package memsrc

import "errors"

// ErrOutOfMemory indicates the underlying source refused a request.
var ErrOutOfMemory = errors.New("memsrc: out of memory")

// ErrOverflow indicates count*stride (or some other size computation)
// would overflow a uintptr.
var ErrOverflow = errors.New("memsrc: size overflow")

// ErrBudgetExceeded indicates a Constrained allocator's budget would be
// exceeded by the request.
var ErrBudgetExceeded = errors.New("memsrc: budget exceeded")
