//go:build linux

package corelock

import (
	"runtime"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// SystemFutex behaves like Futex, but after exhausting its user-space
// pause budget it parks the calling goroutine in the kernel via the Linux
// futex(2) syscall (FUTEX_WAIT/FUTEX_WAKE) instead of spin-yielding
// forever. This is the direct analogue of the Go runtime's own
// lock_futex.go: a locked bit plus a sleeping bit packed into one word,
// so a waiter only pays for a syscall when contention is real.
type SystemFutex struct {
	_      noCopy
	state  atomic.Uint32
	budget uint64
}

const (
	sysFutexUnlocked uint32 = 0
	sysFutexLocked   uint32 = 1
	sysFutexSleeping uint32 = 2
)

// Linux futex(2) operation codes. Defined locally rather than imported
// from golang.org/x/sys/unix because the FUTEX_WAIT/FUTEX_WAKE constants
// are not exported by every vendored revision of that package; the
// numeric values are part of the stable Linux syscall ABI.
const (
	linuxFutexWait = 0
	linuxFutexWake = 1
)

// NewSystemFutex constructs a SystemFutex with the given pause budget. A
// zero budget defaults to PauseBudget16.
func NewSystemFutex(budget PauseBudget) *SystemFutex {
	if budget == 0 {
		budget = PauseBudget16
	}
	return &SystemFutex{budget: uint64(budget)}
}

// Lock blocks until the futex is acquired.
func (f *SystemFutex) Lock() {
	if f.state.CompareAndSwap(sysFutexUnlocked, sysFutexLocked) {
		return
	}

	backoff := uint64(1)
	for backoff <= f.budget {
		if f.state.CompareAndSwap(sysFutexUnlocked, sysFutexLocked) {
			return
		}
		for i := uint64(0); i < backoff; i++ {
			runtime.Gosched()
		}
		backoff <<= 1
	}

	for {
		cur := f.state.Load()
		if cur == sysFutexUnlocked {
			// Acquire in the sleeping state: other waiters may still be
			// parked, and Unlock only wakes one when it sees this state.
			if f.state.CompareAndSwap(sysFutexUnlocked, sysFutexSleeping) {
				return
			}
			continue
		}

		if cur == sysFutexLocked {
			if !f.state.CompareAndSwap(sysFutexLocked, sysFutexSleeping) {
				continue
			}
			cur = sysFutexSleeping
		}

		futexWait(&f.state, sysFutexSleeping)
	}
}

// TryLock attempts to acquire the futex with a single compare-and-swap.
func (f *SystemFutex) TryLock() bool {
	return f.state.CompareAndSwap(sysFutexUnlocked, sysFutexLocked)
}

// Unlock releases the futex, waking one kernel-parked waiter if any were
// recorded as sleeping.
func (f *SystemFutex) Unlock() {
	old := f.state.Swap(sysFutexUnlocked)
	if old == sysFutexSleeping {
		futexWake(&f.state, 1)
	}
}

func futexWait(addr *atomic.Uint32, expected uint32) {
	u32 := (*uint32)(unsafe.Pointer(addr))
	_, _, _ = unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(u32)),
		uintptr(linuxFutexWait),
		uintptr(expected),
		0, 0, 0,
	)
}

func futexWake(addr *atomic.Uint32, count int) {
	u32 := (*uint32)(unsafe.Pointer(addr))
	_, _, _ = unix.Syscall6(
		unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(u32)),
		uintptr(linuxFutexWake),
		uintptr(count),
		0, 0, 0,
	)
}
