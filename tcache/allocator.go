package tcache

import (
	"unsafe"

	"github.com/joeycumines/corelib/goroutineid"
	"github.com/joeycumines/corelib/internal/corelibassert"
	"github.com/joeycumines/corelib/pool"
)

// Allocator is the threaded front-end: a per-goroutine cache of General
// Pool slabs layered over a shared, thread-safe parent allocator. The
// hot allocate/free path serves entirely from the calling goroutine's
// own slabs and never touches the parent's lock; only slab refill and
// flushing surplus fully-free slabs back call into the parent.
type Allocator struct {
	handle    *ParentHandle
	blockSize uintptr
	slabBytes uintptr
	highWater int
}

// NewAllocator constructs a threaded allocator over handle. blockSize is
// the General Pool block size used for every per-goroutine slab;
// slabBytes is the size of each slab requested from the parent on
// refill; highWater is the number of fully-free slabs a goroutine may
// retain before one is flushed back to the parent.
func NewAllocator(handle *ParentHandle, blockSize, slabBytes uintptr, highWater int) *Allocator {
	return &Allocator{
		handle:    handle,
		blockSize: blockSize,
		slabBytes: slabBytes,
		highWater: highWater,
	}
}

// entryFor finds or creates this goroutine's entry for a.handle,
// revalidating against the handle's current generation. Returns
// (nil, nil, false) if the parent has been dropped.
func (a *Allocator) entryFor() (*entry, *goroutineBucket, bool) {
	gid := goroutineid.Current()
	b := bucketFor(gid)

	b.mu.Lock()
	defer b.mu.Unlock()

	parent, gen := a.handle.snapshot()

	e, ok := b.entries[a.handle]
	if ok && e.generation == gen {
		if parent == nil {
			return nil, nil, false
		}
		return e, b, true
	}
	if parent == nil {
		delete(b.entries, a.handle)
		return nil, nil, false
	}

	e = &entry{generation: gen}
	b.entries[a.handle] = e
	return e, b, true
}

// refill requests one new slab from the parent and appends it to e.
func (a *Allocator) refill(e *entry) bool {
	parent, _ := a.handle.snapshot()
	if parent == nil {
		return false
	}

	buf, ok := parent.Allocate(a.slabBytes)
	if !ok {
		return false
	}

	p, err := pool.NewFromBuffer(a.blockSize, unsafe.Slice((*byte)(buf), a.slabBytes))
	if err != nil {
		corelibassert.Fatal("tcache: slab construction failed: %v", err)
		return false
	}

	e.slabs = append(e.slabs, &slab{buf: buf, size: a.slabBytes, pool: p})
	return true
}

// flushEmptySlabs releases fully-free slabs back to the parent once the
// goroutine is holding more than highWater of them.
func (a *Allocator) flushEmptySlabs(e *entry) {
	parent, _ := a.handle.snapshot()
	if parent == nil {
		return
	}

	free := 0
	for _, s := range e.slabs {
		if s.pool.FullyFree() {
			free++
		}
	}
	if free <= a.highWater {
		return
	}

	kept := e.slabs[:0]
	for _, s := range e.slabs {
		if free > a.highWater && s.pool.FullyFree() {
			parent.FreeSized(s.buf, s.size)
			free--
			continue
		}
		kept = append(kept, s)
	}
	e.slabs = kept
}

// Allocate serves n bytes from the calling goroutine's cache, refilling
// from the parent on miss.
func (a *Allocator) Allocate(n uintptr) (unsafe.Pointer, bool) {
	if n == 0 {
		return nil, false
	}

	e, _, ok := a.entryFor()
	if !ok {
		return nil, false
	}

	for attempt := 0; attempt < 2; attempt++ {
		for _, s := range e.slabs {
			if p, ok := s.pool.AllocateN(n); ok {
				return p, true
			}
		}
		if attempt == 0 {
			if !a.refill(e) {
				return nil, false
			}
		}
	}
	return nil, false
}

// FreeSized returns p to whichever of the calling goroutine's slabs contains
// it, using the sized-free path (n is required because the General
// Pool's sized free is what performs double-free detection).
func (a *Allocator) FreeSized(p unsafe.Pointer, n uintptr) {
	if p == nil {
		return
	}

	e, b, ok := a.entryFor()
	if !ok {
		corelibassert.Fatal("tcache: FreeSized against a dropped parent allocator")
		return
	}

	for _, s := range e.slabs {
		if s.pool.Contains(p) {
			s.pool.FreeSized(p, n)
			b.mu.Lock()
			a.flushEmptySlabs(e)
			b.mu.Unlock()
			return
		}
	}

	corelibassert.Fatal("tcache: FreeSized on an address not owned by this goroutine's cache")
}

// Free is unsupported: every allocation this cache hands out goes
// through the General Pool's sized array path, whose double-free
// detection and coalescing both require the size back. Use FreeSized.
func (a *Allocator) Free(p unsafe.Pointer) {
	if p == nil {
		return
	}
	corelibassert.Fatal("tcache: Free called without a size; use FreeSized")
}
