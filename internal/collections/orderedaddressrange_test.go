package collections

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOrderedAddressRangeFindWithinBounds(t *testing.T) {
	r := New[string]()
	r.Add(0x1000, 0x2000, "a")
	r.Add(0x5000, 0x6000, "b")

	v, ok := r.Find(0x1500)
	require.True(t, ok)
	require.Equal(t, "a", v.Value)

	v, ok = r.Find(0x5fff)
	require.True(t, ok)
	require.Equal(t, "b", v.Value)

	_, ok = r.Find(0x3000)
	require.False(t, ok)

	_, ok = r.Find(0x2000) // exclusive upper bound
	require.False(t, ok)
}

func TestOrderedAddressRangeSpansMultipleBuckets(t *testing.T) {
	r := New[int]()
	start := uintptr(1) << bucketBits
	end := start + 3*(uintptr(1)<<bucketBits)
	r.Add(start, end, 42)

	v, ok := r.Find(start + 2*(uintptr(1)<<bucketBits) + 5)
	require.True(t, ok)
	require.Equal(t, 42, v.Value)
}

func TestOrderedAddressRangeRemove(t *testing.T) {
	r := New[int]()
	r.Add(0x1000, 0x2000, 1)
	r.Remove(0x1000, 0x2000)

	_, ok := r.Find(0x1500)
	require.False(t, ok)
	require.Equal(t, 0, r.Len())
}
