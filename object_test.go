package gcix

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

func newHeaderIn(buf []byte) objectAddress {
	return objectAddress(uintptr(unsafe.Pointer(&buf[0])))
}

func TestStandardObjectRoundTrip(t *testing.T) {
	buf := make([]byte, 64)
	h := newHeaderIn(buf)
	obj := newStandardObject(h, 40)

	require.Equal(t, objectTypeStandard, h.objectType())
	require.EqualValues(t, 40, obj.size())
	require.False(t, h.isMarked())

	h.setMarked()
	require.True(t, h.isMarked())
	h.clearMarked()
	require.False(t, h.isMarked())
}

func TestLargeObjectRoundTrip(t *testing.T) {
	buf := make([]byte, 64)
	h := newHeaderIn(buf)
	obj := newLargeObject(h, 1<<20)

	require.Equal(t, objectTypeLarge, h.objectType())
	require.EqualValues(t, 1<<20, obj.size())
}

func TestLargeObjectRoundTripNearThirtyBitBoundary(t *testing.T) {
	buf := make([]byte, 64)
	h := newHeaderIn(buf)

	const size = 1 << 30 // 1GiB: the first size an unscaled size field (bits 2..29) can no longer hold
	obj := newLargeObject(h, size)

	require.Equal(t, objectTypeLarge, h.objectType())
	require.EqualValues(t, size, obj.size())
}

func TestInnerObjectResolvesToOuter(t *testing.T) {
	buf := make([]byte, 256)
	outerHeader := newHeaderIn(buf)
	newStandardObject(outerHeader, 200)

	innerHeader := objectAddress(uintptr(outerHeader) + 64)
	inner := newInnerObject(innerHeader, 64)

	require.Equal(t, objectTypeInner, innerHeader.objectType())
	require.EqualValues(t, 64, inner.offsetToOuter())
	require.Equal(t, outerHeader, inner.outer())
}

func TestStickyLogBitIndependentOfMarked(t *testing.T) {
	buf := make([]byte, 64)
	h := newHeaderIn(buf)
	newStandardObject(h, 8)

	h.setStickyLog()
	require.True(t, h.isStickyLog())
	require.False(t, h.isMarked())

	h.setMarked()
	require.True(t, h.isStickyLog())
	require.True(t, h.isMarked())
}

func TestClassDescriptorInlineRefCountTrace(t *testing.T) {
	slots := make([]uintptr, 3)
	slots[0] = 0x1000
	slots[1] = 0
	slots[2] = 0x2000

	desc := &ClassDescriptor{InlineRefCount: 3}
	var seen []uintptr
	visitor := visitorFunc(func(fieldAddr, target uintptr) { seen = append(seen, target) })

	desc.trace(uintptr(unsafe.Pointer(&slots[0])), visitor)
	require.Equal(t, []uintptr{0x1000, 0, 0x2000}, seen)
}

// visitorFunc adapts a plain function to VisitorContext for tests.
type visitorFunc func(fieldAddr, target uintptr)

func (f visitorFunc) VisitPointer(fieldAddr, target uintptr) { f(fieldAddr, target) }
