package corelock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSpinLock_MutualExclusion(t *testing.T) {
	var lock SpinLock
	var counter int
	var wg sync.WaitGroup

	const goroutines = 50
	const iterations = 1000

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				lock.Lock()
				counter++
				lock.Unlock()
			}
		}()
	}

	wg.Wait()
	require.Equal(t, goroutines*iterations, counter)
}

func TestSpinLock_TryLock(t *testing.T) {
	var lock SpinLock

	require.True(t, lock.TryLock())
	require.False(t, lock.TryLock())
	lock.Unlock()
	require.True(t, lock.TryLock())
	lock.Unlock()
}
