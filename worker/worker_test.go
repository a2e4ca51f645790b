package worker

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestWorker_PushFlushWait pushes 3 increment-counter tasks on a 0
// counter, flushes, waits; counter equals 3 and Ready() is true.
func TestWorker_PushFlushWait(t *testing.T) {
	w := New()
	defer w.Close()

	var counter atomic.Int32
	w.Push(func() { counter.Add(1) })
	w.Push(func() { counter.Add(1) })
	w.Push(func() { counter.Add(1) })

	w.Flush()
	w.Wait()

	require.EqualValues(t, 3, counter.Load())
	require.True(t, w.Ready())
}

func TestWorker_PushOrderPreserved(t *testing.T) {
	w := New()
	defer w.Close()

	var order []int
	for i := 0; i < 10; i++ {
		i := i
		w.Push(func() { order = append(order, i) })
	}
	w.Flush()
	w.Wait()

	require.Len(t, order, 10)
	for i, v := range order {
		require.Equal(t, i, v)
	}
}

func TestWorker_NoOpFlushDoesNotWake(t *testing.T) {
	w := New()
	defer w.Close()

	w.Flush() // empty buffers: must be a no-op
	require.True(t, w.Ready())
}

func TestWorker_BusyWaiting(t *testing.T) {
	w := New()
	w.SetBusyWaiting(true)
	defer w.Close()

	var ran atomic.Bool
	w.Push(func() { ran.Store(true) })
	w.Flush()
	w.Wait()

	require.True(t, ran.Load())
}

func TestWorker_TaskPanicDoesNotKillWorker(t *testing.T) {
	w := New()
	defer w.Close()

	var after atomic.Bool
	w.Push(func() { panic("boom") })
	w.Flush()
	w.Wait()

	w.Push(func() { after.Store(true) })
	w.Flush()
	w.Wait()

	require.True(t, after.Load())
}

func TestWorker_CloseJoinsPromptly(t *testing.T) {
	w := New()

	done := make(chan struct{})
	go func() {
		w.Close()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not join the worker goroutine in time")
	}
}
