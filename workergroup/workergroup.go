// Package workergroup implements the Worker Group (C13): the same
// double-buffered contract as package worker, fanned out to N
// goroutines with a barrier so that a batch is considered complete only
// once every goroutine has finished its partition.
package workergroup

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"

	"github.com/joeycumines/corelib/corelock"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Task is a unit of work pushed onto one worker's partition of a Group.
type Task func()

var taskLogger *logiface.Logger[*stumpy.Event] = stumpy.L.New(stumpy.L.WithStumpy())

const terminal int32 = -1

// Group is N goroutines sharing the Worker double-buffer contract,
// partitioned by an explicit thread index on push and drain.
type Group struct {
	reconfigMu sync.Mutex

	n            int
	buffers      [2][][]Task
	activeBuffer atomic.Int32
	pushLock     corelock.SpinLock

	waitLock sync.Mutex
	execCond *sync.Cond
	waitCond *sync.Cond
	paused   atomic.Bool
	busyWait atomic.Bool

	entering atomic.Int64
	leaving  atomic.Int64

	wg sync.WaitGroup

	limiter *catrate.Limiter
}

// New constructs and starts a Group of n worker goroutines.
func New(n int) *Group {
	if n < 1 {
		n = 1
	}
	g := &Group{
		limiter: catrate.NewLimiter(map[time.Duration]int{time.Second: 1}),
	}
	g.execCond = sync.NewCond(&g.waitLock)
	g.waitCond = sync.NewCond(&g.waitLock)
	g.paused.Store(true)
	g.resizeLocked(n)
	g.startLocked()
	return g
}

func (g *Group) resizeLocked(n int) {
	g.n = n
	g.buffers[0] = make([][]Task, n)
	g.buffers[1] = make([][]Task, n)
}

func (g *Group) startLocked() {
	g.activeBuffer.Store(0)
	g.paused.Store(true)
	g.entering.Store(0)
	g.leaving.Store(0)
	g.wg.Add(g.n)
	for i := 0; i < g.n; i++ {
		go g.loop(i)
	}
}

// SetBusyWaiting toggles whether Wait and the worker goroutines' idle
// loop spin on the paused flag instead of blocking on a condition
// variable.
func (g *Group) SetBusyWaiting(busy bool) {
	g.busyWait.Store(busy)
	if busy {
		g.waitLock.Lock()
		g.execCond.Broadcast()
		g.waitCond.Broadcast()
		g.waitLock.Unlock()
	}
}

// Concurrency returns the current number of worker goroutines.
func (g *Group) Concurrency() int {
	g.reconfigMu.Lock()
	defer g.reconfigMu.Unlock()
	return g.n
}

// Push appends t to worker idx's partition of the currently active
// buffer. A no-op once Close has been called.
func (g *Group) Push(idx int, t Task) {
	g.pushLock.Lock()
	cur := g.activeBuffer.Load()
	if cur == terminal {
		g.pushLock.Unlock()
		return
	}
	g.buffers[cur][idx] = append(g.buffers[cur][idx], t)
	g.pushLock.Unlock()
}

// Emplace is an alias for Push.
func (g *Group) Emplace(idx int, t Task) {
	g.Push(idx, t)
}

// Flush swaps the active buffer and wakes every worker goroutine,
// unless no partition of the active buffer holds any tasks.
func (g *Group) Flush() {
	g.pushLock.Lock()
	cur := g.activeBuffer.Load()
	if cur == terminal {
		g.pushLock.Unlock()
		return
	}

	nonEmpty := false
	for _, t := range g.buffers[cur] {
		if len(t) != 0 {
			nonEmpty = true
			break
		}
	}
	if !nonEmpty {
		g.pushLock.Unlock()
		return
	}

	if !g.paused.Load() {
		if _, ok := g.limiter.Allow("flush-contention"); ok {
			taskLogger.Warning().Log(fmt.Sprintf("workergroup: flush called while a previous batch of %d workers was still running", g.n))
		}
	}

	next := 1 - cur
	g.activeBuffer.Store(next)
	g.pushLock.Unlock()

	g.waitLock.Lock()
	for i := range g.buffers[next] {
		g.buffers[next][i] = g.buffers[next][i][:0]
	}
	g.paused.Store(false)
	g.execCond.Broadcast()
	g.waitLock.Unlock()
}

// Ready reports whether the group is idle.
func (g *Group) Ready() bool {
	return g.paused.Load()
}

// Wait blocks until every worker goroutine has finished the current
// batch.
func (g *Group) Wait() {
	if g.busyWait.Load() {
		for !g.paused.Load() {
			runtime.Gosched()
		}
		return
	}
	g.waitLock.Lock()
	for !g.paused.Load() {
		g.waitCond.Wait()
	}
	g.waitLock.Unlock()
}

// SetConcurrency drains the current batch, joins every worker, resizes
// the per-buffer partition count, and respawns: "wait, drain, move,
// respawn."
func (g *Group) SetConcurrency(n int) {
	if n < 1 {
		n = 1
	}
	g.reconfigMu.Lock()
	defer g.reconfigMu.Unlock()
	if n == g.n {
		return
	}

	g.Wait()
	g.stopLocked()
	g.resizeLocked(n)
	g.startLocked()
}

func (g *Group) stopLocked() {
	g.waitLock.Lock()
	g.activeBuffer.Store(terminal)
	g.paused.Store(false)
	g.execCond.Broadcast()
	g.waitLock.Unlock()
	g.wg.Wait()
}

// Close terminates and joins every worker goroutine.
func (g *Group) Close() {
	g.reconfigMu.Lock()
	defer g.reconfigMu.Unlock()
	g.stopLocked()
}

func (g *Group) loop(i int) {
	defer g.wg.Done()

	for {
		if g.busyWait.Load() {
			for g.paused.Load() && g.activeBuffer.Load() != terminal {
				runtime.Gosched()
			}
		} else {
			g.waitLock.Lock()
			for g.paused.Load() && g.activeBuffer.Load() != terminal {
				g.execCond.Wait()
			}
			g.waitLock.Unlock()
		}

		if g.activeBuffer.Load() == terminal {
			return
		}

		if g.entering.Add(1) == 1 {
			g.waitLock.Lock()
		}

		execIdx := 1 - g.activeBuffer.Load()
		tasks := g.buffers[execIdx][i]
		for _, t := range tasks {
			runTask(t)
		}

		if g.leaving.Add(1) == int64(g.n) {
			for idx := range g.buffers[execIdx] {
				g.buffers[execIdx][idx] = g.buffers[execIdx][idx][:0]
			}
			g.paused.Store(true)
			g.entering.Store(0)
			g.leaving.Store(0)
			g.waitCond.Signal()
			g.waitLock.Unlock()
		}
	}
}

// runTask executes t, recovering and logging any panic so a single
// failing task never takes down its worker goroutine.
func runTask(t Task) {
	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok {
				taskLogger.Err(err).Log("workergroup: task panicked")
				return
			}
			taskLogger.Err(fmt.Errorf("%v", r)).Log("workergroup: task panicked")
		}
	}()
	t()
}
