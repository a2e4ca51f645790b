// Package sharedmutex implements a single-writer / many-reader mutex
// backed by one 64-bit atomic counter, following the packed-counter
// design (not the fair intrusive-queue design — see package fairrw for
// that one).
package sharedmutex

import (
	"runtime"
	"sync/atomic"

	"github.com/joeycumines/corelib/corelock"
	"github.com/joeycumines/corelib/internal/corelibassert"
)

// writerBit marks the top bit of the share counter; when set, a writer
// holds (or is about to hold) the mutex.
const writerBit uint64 = 1 << 63

// RWMutex is a single-writer/many-reader mutex. The zero value is ready
// to use. It is not reentrant and must not be copied after first use.
// RWMutex embeds corelock.Futex, whose own noCopy marker makes RWMutex
// non-copyable to go vet's -copylocks check transitively.
type RWMutex struct {
	share atomic.Uint64
	inner corelock.Futex
}

// RLock blocks until a shared (reader) hold is acquired.
func (m *RWMutex) RLock() {
	prev := m.share.Add(1) - 1
	for prev&writerBit != 0 {
		// Back off by taking and releasing the inner lock: this forces
		// the reader to wait behind whichever writer currently owns it,
		// rather than spinning unboundedly on the counter itself.
		m.inner.Lock()
		m.inner.Unlock()
		prev = m.share.Load()
	}
}

// Lock blocks until an exclusive (writer) hold is acquired.
func (m *RWMutex) Lock() {
	backoff := uint(1)
	const maxBackoff = 32

	for {
		m.inner.Lock()

		if m.share.CompareAndSwap(0, writerBit) {
			return
		}

		m.inner.Unlock()

		for i := uint(0); i < backoff; i++ {
			runtime.Gosched()
		}
		if backoff < maxBackoff {
			backoff <<= 1
		}
	}
}

// TryRLock attempts to acquire a shared hold without blocking.
func (m *RWMutex) TryRLock() bool {
	prev := m.share.Add(1)
	if prev&writerBit != 0 {
		m.share.Add(^uint64(0))
		return false
	}
	return true
}

// TryLock attempts to acquire an exclusive hold without blocking.
func (m *RWMutex) TryLock() bool {
	if !m.inner.TryLock() {
		return false
	}
	if m.share.CompareAndSwap(0, writerBit) {
		return true
	}
	m.inner.Unlock()
	return false
}

// RUnlock releases a shared hold.
func (m *RWMutex) RUnlock() {
	prev := m.share.Add(^uint64(0)) + 1
	if prev == 0 || prev&writerBit != 0 {
		corelibassert.Fatal("sharedmutex: RUnlock without a matching RLock")
	}
}

// Unlock releases an exclusive hold.
func (m *RWMutex) Unlock() {
	// sync/atomic has no Xor primitive; CAS-loop the XOR-clear of
	// writerBit instead (readers arriving while the writer holds the
	// mutex still move the low bits, so the CAS may need a retry).
	for {
		prev := m.share.Load()
		if prev&writerBit == 0 {
			corelibassert.Fatal("sharedmutex: Unlock without a matching Lock")
			return
		}
		if m.share.CompareAndSwap(prev, prev^writerBit) {
			break
		}
	}
	m.inner.Unlock()
}
