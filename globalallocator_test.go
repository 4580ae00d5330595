package gcix

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func TestAllocateStandardObjectsPastOneBlock(t *testing.T) {
	c := NewCollector(CollectorConfig{})
	m := c.NewMutator()
	defer m.Close()

	const objSize = 32
	var addrs []uintptr
	for i := 0; i < 2000; i++ {
		addr, err := m.Allocate(objSize, &ClassDescriptor{})
		require.NoError(t, err)
		require.NotZero(t, addr)
		addrs = append(addrs, addr)
	}

	stats := c.ReadMemStats()
	require.Greater(t, stats.ChunksAcquired, uint64(0))
	require.Greater(t, stats.BytesAllocated, uint64(0))
}

func TestCollectKeepsRootedObjectAndClearsMarks(t *testing.T) {
	c := NewCollector(CollectorConfig{})
	m := c.NewMutator()
	defer m.Close()

	var root uintptr
	addrKept, err := m.Allocate(16, &ClassDescriptor{})
	require.NoError(t, err)
	root = addrKept
	c.AddRoot(uintptr(unsafe.Pointer(&root)))

	_, err = m.Allocate(16, &ClassDescriptor{})
	require.NoError(t, err)

	anchor := captureStackFrame()
	c.Collect(anchor)

	require.EqualValues(t, 1, c.ReadMemStats().NumCollections)

	resolved := c.resolveConservative(root)
	require.True(t, resolved.valid())
	require.False(t, resolved.isMarked(), "mark bits are cleared again once sweep has run")
}

func TestLargeObjectAllocateAndConservativeResolve(t *testing.T) {
	c := NewCollector(CollectorConfig{})

	ptr := c.AllocateLargeObject(1<<16, &ClassDescriptor{})
	require.NotZero(t, ptr)

	h := c.resolveConservative(ptr + 128)
	require.True(t, h.valid())
	require.Equal(t, objectTypeLarge, h.objectType())
}

func TestAddRootRemoveRoot(t *testing.T) {
	c := NewCollector(CollectorConfig{})
	var slot uintptr
	addr := uintptr(unsafe.Pointer(&slot))

	c.AddRoot(addr)
	require.Equal(t, 1, c.roots.Len())
	c.RemoveRoot(addr)
	require.Equal(t, 0, c.roots.Len())
}

// TestAllocateCollectAllocateAgainReusesOddLine exercises spec.md §8
// boundary scenario 3 end to end through a live Mutator: allocate a run of
// one-line objects, keep only the even-indexed ones rooted, collect, then
// allocate again through the *same* Mutator and check the new object lands
// in one of the odd-indexed lines recycle() freed up rather than corrupting
// memory the collector already reused.
func TestAllocateCollectAllocateAgainReusesOddLine(t *testing.T) {
	c := NewCollector(CollectorConfig{})
	m := c.NewMutator()
	defer m.Close()

	const objSize = lineSizeInBytes - headerTotalSize // exactly one line, header included
	const n = 20

	kept := make([]uintptr, n)
	for i := 0; i < n; i++ {
		addr, err := m.Allocate(objSize, &ClassDescriptor{})
		require.NoError(t, err)
		require.NotZero(t, addr)
		kept[i] = addr
		if i%2 == 0 {
			c.AddRoot(uintptr(unsafe.Pointer(&kept[i])))
		}
	}

	originalBlock := blockFromAny(uintptr(objectFromAddress(kept[0])))

	anchor := captureStackFrame()
	c.Collect(anchor)

	// Every mutator's bump region must have been reset across the
	// collection: nothing here should still describe memory that recycle()
	// may have just zeroed and handed to the recyclable pool.
	require.Zero(t, m.cursor)
	require.Zero(t, m.limit)
	require.Nil(t, m.holes)

	addr, err := m.Allocate(objSize, &ClassDescriptor{})
	require.NoError(t, err)
	require.NotZero(t, addr)

	header := objectFromAddress(addr)
	b := blockFromAny(uintptr(header))
	require.Equal(t, originalBlock, b, "the recycled block should be reused before a fresh one")

	line := b.lineIndexForAddress(uintptr(header))
	require.Equal(t, 1, line%2, "the next allocation should land in a recycled odd-indexed line")
}

func TestSequentialStoreBufferDrainsThroughAddRoot(t *testing.T) {
	c := NewCollector(CollectorConfig{SequentialStoreBufferSize: 4})
	m := c.NewMutator()
	defer m.Close()

	for i := 0; i < 10; i++ {
		m.PushStoreBufferEntry(uintptr(i + 1))
	}
	m.DrainStoreBuffer()
	require.Equal(t, 10, c.roots.Len())
}
