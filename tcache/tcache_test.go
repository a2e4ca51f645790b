package tcache

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/joeycumines/corelib/internal/corelibassert"
	"github.com/joeycumines/corelib/memsrc"
	"github.com/stretchr/testify/require"
)

func newTestAllocator() (*Allocator, *ParentHandle) {
	parent := memsrc.NewAtomic(memsrc.New(memsrc.NewMallocSource()))
	handle := NewParentHandle(parent)
	a := NewAllocator(handle, 32, 32*64, 1)
	return a, handle
}

func TestAllocator_AllocateFreeRoundTrip(t *testing.T) {
	a, _ := newTestAllocator()

	p, ok := a.Allocate(16)
	require.True(t, ok)
	require.NotNil(t, p)

	a.FreeSized(p, 16)
}

func TestAllocator_RefillsOnSlabExhaustion(t *testing.T) {
	a, _ := newTestAllocator()

	var allocs []unsafe.Pointer
	for i := 0; i < 200; i++ {
		p, ok := a.Allocate(16)
		require.True(t, ok, "allocation %d should succeed via refill", i)
		allocs = append(allocs, p)
	}

	for _, p := range allocs {
		a.FreeSized(p, 16)
	}
}

func TestAllocator_PerGoroutineIsolation(t *testing.T) {
	a, _ := newTestAllocator()

	var wg sync.WaitGroup
	results := make(chan bool, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, ok := a.Allocate(16)
			if ok {
				a.FreeSized(p, 16)
			}
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	for ok := range results {
		require.True(t, ok)
	}
}

func TestAllocator_DropInvalidatesCache(t *testing.T) {
	a, handle := newTestAllocator()

	p, ok := a.Allocate(16)
	require.True(t, ok)
	a.FreeSized(p, 16)

	handle.Drop()

	var fataled bool
	corelibassert.SetHook(func(string) { fataled = true })
	defer corelibassert.SetHook(nil)

	_, ok = a.Allocate(16)
	require.False(t, ok)

	p2, ok := a.Allocate(16)
	require.False(t, ok)
	_ = p2
	require.False(t, fataled) // Allocate on a dropped parent just fails, no Fatal
}

func TestAllocator_ReplaceRebuildsCacheAgainstNewParent(t *testing.T) {
	a, handle := newTestAllocator()

	p, ok := a.Allocate(16)
	require.True(t, ok)
	a.FreeSized(p, 16)

	newParent := memsrc.NewAtomic(memsrc.New(memsrc.NewMallocSource()))
	handle.Replace(newParent)

	p2, ok := a.Allocate(16)
	require.True(t, ok)
	a.FreeSized(p2, 16)
}
