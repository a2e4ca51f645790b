package tcache

import (
	"sync"
	"unsafe"

	"github.com/joeycumines/corelib/pool"
)

// slab is one backing buffer obtained from a parent allocator, fronted
// by a General Pool.
type slab struct {
	buf  unsafe.Pointer
	size uintptr
	pool *pool.Pool
}

// entry is one goroutine's view of one ParentHandle: a generation stamp
// plus the slabs currently owned by this goroutine for that parent.
type entry struct {
	generation uint64
	slabs      []*slab
}

// goroutineBucket holds every entry a single goroutine has created,
// keyed by the identity (pointer) of the ParentHandle it serves.
type goroutineBucket struct {
	mu      sync.Mutex
	entries map[*ParentHandle]*entry
}

// registry is the process-wide thread cache: one bucket per goroutine,
// lazily created on first use. It is process-wide state, not literally
// attached to any goroutine object, because Go exposes no hook to tear
// down state on goroutine exit; stale buckets for goroutines that have
// since exited are harmless (they're simply never looked up again) and
// are not actively reaped, which is the accepted trade-off documented
// for this component.
var registry sync.Map // uint64 (goroutine id) -> *goroutineBucket

func bucketFor(gid uint64) *goroutineBucket {
	if v, ok := registry.Load(gid); ok {
		return v.(*goroutineBucket)
	}
	b := &goroutineBucket{entries: make(map[*ParentHandle]*entry)}
	actual, _ := registry.LoadOrStore(gid, b)
	return actual.(*goroutineBucket)
}
