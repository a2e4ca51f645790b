package corelock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFutex_MutualExclusion(t *testing.T) {
	f := NewFutex(PauseBudget4)
	var counter int
	var wg sync.WaitGroup

	const goroutines = 50
	const iterations = 500

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				f.Lock()
				counter++
				f.Unlock()
			}
		}()
	}

	wg.Wait()
	require.Equal(t, goroutines*iterations, counter)
}

func TestFutex_TryLock(t *testing.T) {
	f := NewFutex(0)

	require.True(t, f.TryLock())
	require.False(t, f.TryLock())
	f.Unlock()
	require.True(t, f.TryLock())
}

func TestSystemFutex_MutualExclusion(t *testing.T) {
	f := NewSystemFutex(PauseBudget2)
	var counter int
	var wg sync.WaitGroup

	const goroutines = 32
	const iterations = 200

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				f.Lock()
				counter++
				f.Unlock()
			}
		}()
	}

	wg.Wait()
	require.Equal(t, goroutines*iterations, counter)
}
