package collections

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSequentialStoreBufferPushAcrossOverflow(t *testing.T) {
	alloc := NewSequentialStoreBufferAllocator(4)
	h := alloc.NewHandle()

	for i := uintptr(1); i <= 10; i++ {
		h.Push(i)
	}
	require.Equal(t, 10, h.Len())

	var got []uintptr
	h.Drain(func(p uintptr) { got = append(got, p) })

	require.Equal(t, []uintptr{10, 9, 8, 7, 6, 5, 4, 3, 2, 1}, got)
	require.Equal(t, 0, h.Len())
}

func TestSequentialStoreBufferPopIsLIFOAcrossOverflow(t *testing.T) {
	alloc := NewSequentialStoreBufferAllocator(4)
	h := alloc.NewHandle()

	for i := uintptr(1); i <= 10; i++ {
		h.Push(i)
	}

	for want := uintptr(10); want >= 1; want-- {
		got, ok := h.Pop()
		require.True(t, ok)
		require.Equal(t, want, got)
	}

	_, ok := h.Pop()
	require.False(t, ok, "the chain should be exhausted")
}

func TestSequentialStoreBufferRecyclesChainedBuffers(t *testing.T) {
	alloc := NewSequentialStoreBufferAllocator(2)
	h := alloc.NewHandle()

	for i := uintptr(1); i <= 5; i++ {
		h.Push(i)
	}
	h.Drain(func(uintptr) {})

	require.Equal(t, 2, len(alloc.free))
}
