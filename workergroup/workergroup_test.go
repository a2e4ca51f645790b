package workergroup

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestGroup_HundredTasksRoundRobin builds a worker group with N=4,
// pushes 100 tasks round-robin, flushes, waits. All 100 tasks run
// exactly once; per-thread order equals per-thread push order.
func TestGroup_HundredTasksRoundRobin(t *testing.T) {
	const n = 4
	g := New(n)
	defer g.Close()

	var counts [n]atomic.Int32
	perThreadOrder := make([][]int, n)

	var ran atomic.Int32
	for i := 0; i < 100; i++ {
		idx := i % n
		taskID := i
		g.Push(idx, func() {
			counts[idx].Add(1)
			ran.Add(1)
			perThreadOrder[idx] = append(perThreadOrder[idx], taskID)
		})
	}

	g.Flush()
	g.Wait()

	require.EqualValues(t, 100, ran.Load())
	for i := 0; i < n; i++ {
		require.EqualValues(t, 25, counts[i].Load())
	}
	for i := 0; i < n; i++ {
		prev := -1
		for _, id := range perThreadOrder[i] {
			require.Greater(t, id, prev)
			prev = id
		}
	}
}

func TestGroup_ReadyAndWait(t *testing.T) {
	g := New(2)
	defer g.Close()

	require.True(t, g.Ready())

	var ran atomic.Bool
	g.Push(0, func() { ran.Store(true) })
	g.Flush()
	g.Wait()

	require.True(t, ran.Load())
	require.True(t, g.Ready())
}

func TestGroup_SetConcurrency(t *testing.T) {
	g := New(2)
	defer g.Close()

	require.Equal(t, 2, g.Concurrency())

	g.SetConcurrency(5)
	require.Equal(t, 5, g.Concurrency())

	var ran [5]atomic.Bool
	for i := 0; i < 5; i++ {
		i := i
		g.Push(i, func() { ran[i].Store(true) })
	}
	g.Flush()
	g.Wait()

	for i := 0; i < 5; i++ {
		require.True(t, ran[i].Load())
	}
}

func TestGroup_TaskPanicDoesNotKillGroup(t *testing.T) {
	g := New(3)
	defer g.Close()

	g.Push(0, func() { panic("boom") })
	g.Flush()
	g.Wait()

	var after atomic.Bool
	g.Push(1, func() { after.Store(true) })
	g.Flush()
	g.Wait()

	require.True(t, after.Load())
}

func TestGroup_BusyWaiting(t *testing.T) {
	g := New(2)
	g.SetBusyWaiting(true)
	defer g.Close()

	var ran atomic.Bool
	g.Push(0, func() { ran.Store(true) })
	g.Flush()
	g.Wait()

	require.True(t, ran.Load())
}
