// Package fairrw implements a FIFO-fair reader/writer lock built from an
// intrusive doubly-linked queue of waiter nodes, resolving the canonical-
// design Open Question in favor of strict acquisition ordering: a late
// reader never overtakes an earlier writer, and vice versa.
package fairrw

import (
	"sync"
	"sync/atomic"

	"github.com/joeycumines/corelib/internal/corelibassert"
)

// node is a queue entry. Every waiter owns exactly one node, allocated on
// its own stack frame inside Lock/RLock and never copied once linked —
// the pinning requirement is enforced simply by never returning *node nor
// storing it anywhere but the queue and the call's own locals. next/prev
// are accessed across goroutines (a predecessor's pop writes a
// successor's prev; an inserting goroutine writes its predecessor's
// next), so both are atomic pointers rather than plain fields.
type node struct {
	mu   sync.Mutex
	next atomic.Pointer[node]
	prev atomic.Pointer[node]
}

// RWLock is a FIFO-fair reader/writer lock. The zero value is not usable;
// construct with New.
type RWLock struct {
	head, tail  node
	activeUsers atomic.Int64
}

// New constructs a ready-to-use RWLock.
func New() *RWLock {
	l := &RWLock{}
	l.head.next.Store(&l.tail)
	l.tail.prev.Store(&l.head)
	return l
}

// Guard is returned by an acquisition and releases it exactly once via
// Unlock.
type Guard struct {
	lock    *RWLock
	shared  bool
	wasNoop bool
}

// insert splices n in immediately before the tail sentinel, following the
// source's lock-tail-then-lock-self-then-relink order.
func (l *RWLock) insert(n *node) {
	l.tail.mu.Lock()
	n.mu.Lock()

	prev := l.tail.prev.Load()
	n.prev.Store(prev)
	n.next.Store(&l.tail)
	l.tail.prev.Store(n)
	prev.next.Store(n)

	n.mu.Unlock()
	l.tail.mu.Unlock()
}

// tryInsert splices n in only if the lock is currently idle and the tail
// is uncontended, matching the source's _try_insert_node fast-reject.
func (l *RWLock) tryInsert(n *node) bool {
	if l.activeUsers.Load() != 0 {
		return false
	}
	if !l.tail.mu.TryLock() {
		return false
	}

	n.mu.Lock()
	prev := l.tail.prev.Load()
	n.prev.Store(prev)
	n.next.Store(&l.tail)
	l.tail.prev.Store(n)
	prev.next.Store(n)
	n.mu.Unlock()

	l.tail.mu.Unlock()
	return true
}

// wait blocks until n is at the front of the queue (n.prev == &l.head),
// first with a doubling bounded spin and then, per the original
// implementation's two-phase retry, one more spin-budget pass before
// falling back to taking and releasing n's own mutex to pick up a wakeup
// left by the predecessor's pop. Returns whether n's successor's mutex
// was opportunistically locked along the way (so the caller's pop can
// skip re-locking it).
func (l *RWLock) wait(n *node) bool {
	lockedNext := false
	if next := n.next.Load(); next != &l.tail {
		lockedNext = next.mu.TryLock()
	}

	amFree := func() bool { return n.prev.Load() == &l.head }

	const spinPhases = 2
	const maxSpin = 32

	for phase := 0; phase < spinPhases && !amFree(); phase++ {
		spin := uint(1)
		for !amFree() && spin <= maxSpin {
			for i := uint(0); i < spin; i++ {
				spinHint()
			}
			spin <<= 1
		}
	}

	for !amFree() {
		n.mu.Lock()
		n.mu.Unlock()
	}

	return lockedNext
}

// pop unlinks n from the front of the queue once it has acquired the
// lock. Unlinking is always performed by the acquirer, never the
// releaser, which is what enforces FIFO: a predecessor's release only
// ever wakes its immediate successor.
func (l *RWLock) pop(n *node, lockedNext bool) {
	next := n.next.Load()
	if !lockedNext {
		next.mu.Lock()
	}

	next.prev.Store(&l.head)
	l.head.next.Store(next)

	next.mu.Unlock()
}

// Lock blocks until an exclusive hold is acquired.
func (l *RWLock) Lock() Guard {
	var n node
	l.insert(&n)
	lockedNext := l.wait(&n)

	for l.activeUsers.Load() != 0 {
		spinHint()
	}
	l.activeUsers.Store(-1)

	l.pop(&n, lockedNext)
	return Guard{lock: l}
}

// RLock blocks until a shared hold is acquired.
func (l *RWLock) RLock() Guard {
	var n node
	l.insert(&n)
	lockedNext := l.wait(&n)

	for l.activeUsers.Load() < 0 {
		spinHint()
	}
	l.activeUsers.Add(1)

	l.pop(&n, lockedNext)
	return Guard{lock: l, shared: true}
}

// TryLock attempts to acquire an exclusive hold without blocking. Only
// splices into the queue when the lock is idle and the tail is
// uncontended; never waits.
func (l *RWLock) TryLock() (Guard, bool) {
	var n node
	if !l.tryInsert(&n) {
		return Guard{wasNoop: true}, false
	}
	lockedNext := l.wait(&n)

	for l.activeUsers.Load() != 0 {
		spinHint()
	}
	l.activeUsers.Store(-1)

	l.pop(&n, lockedNext)
	return Guard{lock: l}, true
}

// TryRLock attempts to acquire a shared hold without blocking.
func (l *RWLock) TryRLock() (Guard, bool) {
	var n node
	if !l.tryInsert(&n) {
		return Guard{wasNoop: true}, false
	}
	lockedNext := l.wait(&n)

	for l.activeUsers.Load() < 0 {
		spinHint()
	}
	l.activeUsers.Add(1)

	l.pop(&n, lockedNext)
	return Guard{lock: l, shared: true}, true
}

// Unlock releases the hold this Guard represents.
func (g Guard) Unlock() {
	if g.wasNoop || g.lock == nil {
		return
	}
	if g.shared {
		prev := g.lock.activeUsers.Add(-1) + 1
		if prev <= 0 {
			corelibassert.Fatal("fairrw: shared release with no active reader")
		}
		return
	}
	if !g.lock.activeUsers.CompareAndSwap(-1, 0) {
		corelibassert.Fatal("fairrw: exclusive release without a matching acquire")
	}
}
