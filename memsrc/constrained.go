package memsrc

import (
	"sync/atomic"
	"unsafe"

	"github.com/joeycumines/corelib/internal/corelibassert"
)

// Constrained wraps an Allocator with a byte budget. allocate(n) fails
// once used+n would exceed max. Unsized free is forbidden — Constrained
// cannot account for a released size it was never told — and is a fatal
// invariant violation rather than a silent leak of the budget.
type Constrained struct {
	inner *Allocator
	max   int64
	used  atomic.Int64
}

// NewConstrained wraps inner with a fixed byte budget max. max may be a
// compile-time constant the caller bakes in, or a runtime-computed
// value; Constrained treats both identically.
func NewConstrained(inner *Allocator, max int64) *Constrained {
	return &Constrained{inner: inner, max: max}
}

// Budget returns the configured byte budget.
func (c *Constrained) Budget() int64 { return c.max }

// Used returns the currently accounted byte usage.
func (c *Constrained) Used() int64 { return c.used.Load() }

// Allocate returns n bytes if doing so would not exceed the budget.
func (c *Constrained) Allocate(n uintptr) (unsafe.Pointer, bool) {
	if n == 0 {
		return nil, false
	}
	want := int64(n)

	for {
		cur := c.used.Load()
		if cur+want > c.max {
			return nil, false
		}
		if c.used.CompareAndSwap(cur, cur+want) {
			break
		}
	}

	p, ok := c.inner.Allocate(n)
	if !ok {
		c.used.Add(-want)
		return nil, false
	}
	return p, true
}

// FreeSized releases n bytes previously charged against the budget.
func (c *Constrained) FreeSized(p unsafe.Pointer, n uintptr) {
	if p == nil {
		return
	}
	c.inner.FreeSized(p, n)
	c.used.Add(-int64(n))
}

// Free is unsupported: Constrained has no way to recover the size it
// should credit back to the budget without it being supplied.
func (c *Constrained) Free(p unsafe.Pointer) {
	if p == nil {
		return
	}
	corelibassert.Fatal("memsrc: Constrained.Free called without a size; use FreeSized")
}
