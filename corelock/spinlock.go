// Package corelock implements the lowest-level exclusion primitives used
// throughout corelib: SpinLock (pure busy-wait), Futex (bounded spin,
// then a yield loop) and SystemFutex (the same, with an OS-backed wait
// for long waits on Linux). None is reentrant, and none supports being
// copied after first use.
package corelock

import (
	"runtime"
	"sync/atomic"
)

// noCopy marks a struct as non-copyable to go vet's -copylocks check.
// See sync.noCopy in the standard library for the precedent this follows.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// SpinLock is a cache-line aligned and padded test-and-set exclusive
// lock. It never yields to the OS scheduler's wait queues; callers that
// expect to block for any meaningful duration should use Futex instead.
//
// Padding keeps the lock word on its own cache line so contention on this
// lock doesn't force false-sharing on an adjacent hot field, following the
// same layout eventloop.FastState uses for its atomic state word.
type SpinLock struct {
	_       noCopy
	_       [cachePad]byte
	locked  atomic.Bool
	_       [cachePad - 1]byte
}

const cachePad = 64

// Lock blocks, spinning, until the lock is acquired.
func (s *SpinLock) Lock() {
	for !s.locked.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

// TryLock attempts to acquire the lock without blocking.
func (s *SpinLock) TryLock() bool {
	return s.locked.CompareAndSwap(false, true)
}

// Unlock releases the lock. Unlocking a lock that isn't held is a caller
// bug; SpinLock does not detect it (matching the source primitive, which
// has no ownership tracking either).
func (s *SpinLock) Unlock() {
	s.locked.Store(false)
}
