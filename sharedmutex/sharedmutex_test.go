package sharedmutex

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRWMutex_WriterExclusion(t *testing.T) {
	var m RWMutex
	var writerActive atomic.Bool
	var violations atomic.Int32
	var wg sync.WaitGroup

	const writers = 8
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				m.Lock()
				if !writerActive.CompareAndSwap(false, true) {
					violations.Add(1)
				}
				writerActive.Store(false)
				m.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Zero(t, violations.Load())
}

func TestRWMutex_ReadersConcurrent(t *testing.T) {
	var m RWMutex
	m.RLock()
	defer m.RUnlock()

	require.True(t, m.TryRLock())
	m.RUnlock()
}

func TestRWMutex_WriterBlocksReaders(t *testing.T) {
	var m RWMutex
	m.Lock()

	acquired := make(chan struct{})
	go func() {
		m.RLock()
		close(acquired)
		m.RUnlock()
	}()

	select {
	case <-acquired:
		t.Fatal("reader acquired lock while writer held it")
	case <-time.After(50 * time.Millisecond):
	}

	m.Unlock()
	<-acquired
}

func TestRWMutex_TryLock(t *testing.T) {
	var m RWMutex
	require.True(t, m.TryLock())
	require.False(t, m.TryLock())
	require.False(t, m.TryRLock())
	m.Unlock()

	require.True(t, m.TryRLock())
	require.False(t, m.TryLock())
	m.RUnlock()
}
