// Package worker implements the double-buffered single-thread task
// queue (C12): producers push into one buffer while the worker
// goroutine drains the other, swapping under a spin lock on flush.
package worker

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/corelib/corelock"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Task is a unit of work pushed onto a Worker.
type Task func()

var taskLogger *logiface.Logger[*stumpy.Event] = stumpy.L.New(stumpy.L.WithStumpy())

// terminal marks the active-buffer index once a Worker has been closed.
const terminal int32 = -1

// Worker runs tasks pushed by producers, one background goroutine at a
// time, in two alternating batches. The zero value is not usable;
// construct with New.
type Worker struct {
	buffers      [2][]Task
	activeBuffer atomic.Int32
	pushLock     corelock.SpinLock

	waitLock sync.Mutex
	execCond *sync.Cond
	waitCond *sync.Cond
	paused   atomic.Bool
	busyWait atomic.Bool

	done chan struct{}
}

// New constructs and starts a Worker.
func New() *Worker {
	w := &Worker{done: make(chan struct{})}
	w.execCond = sync.NewCond(&w.waitLock)
	w.waitCond = sync.NewCond(&w.waitLock)
	w.paused.Store(true)
	go w.loop()
	return w
}

// SetBusyWaiting toggles whether Wait (and the worker's own idle loop)
// spins on the paused flag instead of blocking on a condition variable.
func (w *Worker) SetBusyWaiting(busy bool) {
	w.busyWait.Store(busy)
	if busy {
		w.waitLock.Lock()
		w.execCond.Broadcast()
		w.waitCond.Broadcast()
		w.waitLock.Unlock()
	}
}

// Push appends t to the currently active buffer. A no-op once Close has
// been called.
func (w *Worker) Push(t Task) {
	w.pushLock.Lock()
	idx := w.activeBuffer.Load()
	if idx == terminal {
		w.pushLock.Unlock()
		return
	}
	w.buffers[idx] = append(w.buffers[idx], t)
	w.pushLock.Unlock()
}

// Emplace is an alias for Push, kept for symmetry with construct-in-
// place naming conventions elsewhere in this module.
func (w *Worker) Emplace(t Task) {
	w.Push(t)
}

// Flush swaps the active buffer and wakes the worker goroutine, unless
// the active buffer is empty (a no-op flush never wakes the thread) or
// the Worker has been closed.
func (w *Worker) Flush() {
	w.pushLock.Lock()
	cur := w.activeBuffer.Load()
	if cur == terminal {
		w.pushLock.Unlock()
		return
	}
	if len(w.buffers[cur]) == 0 {
		w.pushLock.Unlock()
		return
	}
	next := 1 - cur
	w.activeBuffer.Store(next)
	w.pushLock.Unlock()

	w.waitLock.Lock()
	w.buffers[next] = w.buffers[next][:0]
	w.paused.Store(false)
	w.execCond.Signal()
	w.waitLock.Unlock()
}

// Ready reports whether the worker is idle (the prior batch, if any,
// has finished executing and no new flush is pending).
func (w *Worker) Ready() bool {
	return w.paused.Load()
}

// Wait blocks until the worker is idle.
func (w *Worker) Wait() {
	if w.busyWait.Load() {
		for !w.paused.Load() {
			runtime.Gosched()
		}
		return
	}
	w.waitLock.Lock()
	for !w.paused.Load() {
		w.waitCond.Wait()
	}
	w.waitLock.Unlock()
}

// Close terminates the worker goroutine and joins it. Any tasks pushed
// after Close are silently dropped.
func (w *Worker) Close() {
	w.waitLock.Lock()
	w.activeBuffer.Store(terminal)
	w.paused.Store(false)
	w.execCond.Broadcast()
	w.waitLock.Unlock()
	<-w.done
}

func (w *Worker) loop() {
	defer close(w.done)

	for {
		if w.busyWait.Load() {
			for w.paused.Load() && w.activeBuffer.Load() != terminal {
				runtime.Gosched()
			}
		} else {
			w.waitLock.Lock()
			for w.paused.Load() && w.activeBuffer.Load() != terminal {
				w.execCond.Wait()
			}
			w.waitLock.Unlock()
		}

		if w.activeBuffer.Load() == terminal {
			return
		}

		cur := w.activeBuffer.Load()
		execIdx := 1 - cur
		tasks := w.buffers[execIdx]

		for _, t := range tasks {
			runTask(t)
		}

		w.waitLock.Lock()
		w.buffers[execIdx] = w.buffers[execIdx][:0]
		w.paused.Store(true)
		w.waitCond.Signal()
		w.waitLock.Unlock()
	}
}

// runTask executes t, recovering and logging any panic so that one
// failing task never takes down the worker goroutine. Workers never
// propagate task failures; tasks wanting to report errors must do so
// through their own captured channels.
func runTask(t Task) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(r)
		}
	}()
	t()
}

func logPanic(r any) {
	if err, ok := r.(error); ok {
		taskLogger.Err(err).Log("worker: task panicked")
		return
	}
	taskLogger.Err(fmt.Errorf("%v", r)).Log("worker: task panicked")
}
