package gcix

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

// testBlock allocates enough plain Go memory to back one block's worth of
// bytes and returns it as a blockAddress. Tests in this file only exercise
// intra-block arithmetic (payload offsets, line indices), never
// chunk-alignment-dependent operations, so page/chunk alignment from the
// real arena isn't required here.
func testBlock(t *testing.T) blockAddress {
	t.Helper()
	buf := make([]byte, blockSizeInBytes+blockSizeInBytes) // slack for alignment headroom
	base := uintptr(unsafe.Pointer(&buf[0]))
	aligned := (base + blockSizeInBytes - 1) &^ (blockSizeInBytes - 1)
	b := blockAddress(aligned)
	b.initialize()
	return b
}

func TestBlockInitializeAllLinesEmpty(t *testing.T) {
	b := testBlock(t)
	for i := 0; i < effectiveLineCount; i++ {
		require.False(t, b.lineContainsObject(i))
		require.False(t, b.lineMarked(i))
	}
	require.Equal(t, blockFree, b.state())
}

func TestRecordObjectStartAndFirstObjectInLine(t *testing.T) {
	b := testBlock(t)
	headerAddr := b.lineAddress(3) + 32
	b.recordObjectStart(headerAddr)

	require.True(t, b.lineContainsObject(3))
	require.Equal(t, objectAddress(headerAddr), b.firstObjectInLine(3))

	// A second object starting later in the same line must not overwrite
	// the first one: conservative resolution always anchors on the first
	// object in a line and walks forward from there.
	b.recordObjectStart(b.lineAddress(3) + 96)
	require.Equal(t, objectAddress(headerAddr), b.firstObjectInLine(3))
}

func TestMarkLinesSpansMultipleLines(t *testing.T) {
	b := testBlock(t)
	headerAddr := b.lineAddress(10)
	b.markLines(headerAddr, 3*lineSizeInBytes+8)

	require.True(t, b.lineMarked(10))
	require.True(t, b.lineMarked(11))
	require.True(t, b.lineMarked(12))
	require.True(t, b.lineMarked(13))
	require.False(t, b.lineMarked(14))
}

func TestRecycleFreesAllUnmarkedBlock(t *testing.T) {
	b := testBlock(t)
	b.setState(blockUnavailable)
	holes := b.recycle()

	require.Equal(t, blockFree, b.state())
	require.Len(t, holes, 1)
	require.Equal(t, b.payloadStart(), holes[0].start)
}

func TestRecycleCoalescesHolesAroundLiveLines(t *testing.T) {
	b := testBlock(t)
	b.setState(blockUnavailable)

	headerAddr := b.lineAddress(5)
	newStandardObject(objectAddress(headerAddr), 40)
	b.recordObjectStart(headerAddr)
	b.markLines(headerAddr, headerTotalSize+40)

	holes := b.recycle()

	require.Equal(t, blockRecyclable, b.state())
	require.Len(t, holes, 2)
	require.Equal(t, b.payloadStart(), holes[0].start)
	require.Equal(t, b.lineAddress(5), holes[0].end)
	require.Equal(t, b.lineAddress(6), holes[1].start)
}

func TestFindEnclosingObjectWalksForwardFromLineAnchor(t *testing.T) {
	b := testBlock(t)
	first := b.lineAddress(8)
	newStandardObject(objectAddress(first), 20)
	b.recordObjectStart(first)

	second := first + headerTotalSize + 20
	newStandardObject(objectAddress(second), 16)

	target := second + 5 // interior pointer into the second object's payload
	got := b.findEnclosingObject(target)
	require.Equal(t, objectAddress(second), got)
}
