// Package corelibassert implements the two-tier error model of this
// module: recoverable failures are returned in-band by callers, while
// invariant violations route through Fatal, which logs and then panics.
//
// Tests that intentionally trigger an invariant violation should install
// a Hook to recover rather than letting the panic escape the test binary,
// mirroring the test-seam pattern other corelib packages use for
// deterministic coverage of otherwise-unrecoverable paths.
package corelibassert

import (
	"fmt"
	"sync"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

var (
	mu     sync.Mutex
	logger *logiface.Logger[*stumpy.Event] = stumpy.L.New(stumpy.L.WithStumpy())
	hook   func(msg string)
)

// SetHook installs f as the panic-time callback invoked by Fatal, in place
// of the default logiface.Logger.Panic behavior. Passing nil restores the
// default. Intended for tests only.
func SetHook(f func(msg string)) {
	mu.Lock()
	defer mu.Unlock()
	hook = f
}

// Fatal reports an invariant violation: a condition that, if allowed to
// continue, would corrupt the state of an allocator or lock. It logs the
// formatted message at panic level and then panics (the corelib
// abort()-equivalent), unless a test hook has been installed via SetHook.
func Fatal(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	mu.Lock()
	h := hook
	mu.Unlock()

	if h != nil {
		h(msg)
		return
	}

	logger.Panic().Log(msg)
}
