package memsrc

import (
	"sync"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestAllocator_SentinelContracts(t *testing.T) {
	a := New(NewMallocSource())

	_, ok := a.Allocate(0)
	require.False(t, ok)

	a.Free(nil)  // must not panic
	a.FreeSized(nil, 8) // must not panic

	p, ok := a.Reallocate(nil, 0)
	require.False(t, ok)
	require.Nil(t, p)

	q, ok := a.Allocate(16)
	require.True(t, ok)
	r, ok := a.Reallocate(q, 0)
	require.False(t, ok)
	require.Nil(t, r)
}

func TestAllocator_AllocateContiguousOverflow(t *testing.T) {
	a := New(NewMallocSource())

	_, ok := a.AllocateContiguous(^uintptr(0), 2)
	require.False(t, ok)
}

func TestAllocator_AllocateContiguousZeroFilled(t *testing.T) {
	a := New(NewMallocSource())

	p, ok := a.AllocateContiguous(4, 8)
	require.True(t, ok)

	b := unsafe.Slice((*byte)(p), 32)
	for _, v := range b {
		require.Zero(t, v)
	}
}

func TestAllocator_ReallocateCopiesMin(t *testing.T) {
	a := New(NewMallocSource())

	p, ok := a.Allocate(4)
	require.True(t, ok)
	b := unsafe.Slice((*byte)(p), 4)
	copy(b, []byte{1, 2, 3, 4})

	np, ok := a.Reallocate(p, 8, 4)
	require.True(t, ok)
	nb := unsafe.Slice((*byte)(np), 8)
	require.Equal(t, []byte{1, 2, 3, 4, 0, 0, 0, 0}, nb)
}

func TestConstrained_Budget(t *testing.T) {
	c := NewConstrained(New(NewMallocSource()), 128)

	p1, ok := c.Allocate(64)
	require.True(t, ok)
	_, ok = c.Allocate(64)
	require.True(t, ok)
	_, ok = c.Allocate(1)
	require.False(t, ok)

	c.FreeSized(p1, 64)
	_, ok = c.Allocate(64)
	require.True(t, ok)
}

func TestBlockRounding_RoundsUp(t *testing.T) {
	underlying := NewMallocSource()
	b := NewBlockRounding(New(underlying), 32)

	p, ok := b.Allocate(1)
	require.True(t, ok)
	require.Contains(t, underlying.regions, uintptr(p))
	require.Len(t, underlying.regions[uintptr(p)], 32)
}

func TestAtomic_ConcurrentAllocations(t *testing.T) {
	a := NewAtomic(New(NewMallocSource()))

	var wg sync.WaitGroup
	seen := make(chan unsafe.Pointer, 200)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				p, ok := a.Allocate(16)
				require.True(t, ok)
				seen <- p
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[unsafe.Pointer]struct{})
	for p := range seen {
		_, dup := unique[p]
		require.False(t, dup, "overlapping allocation returned twice")
		unique[p] = struct{}{}
	}
	require.Len(t, unique, 200)
}
