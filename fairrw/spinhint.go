package fairrw

import "runtime"

// spinHint yields the current goroutine's remaining time slice. Go has no
// portable user-mode pause/yield instruction, so runtime.Gosched is the
// idiomatic stand-in used throughout this module's spin loops.
func spinHint() {
	runtime.Gosched()
}
