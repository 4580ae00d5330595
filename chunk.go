package gcix

import "unsafe"

// chunkAddress is the base address of an 8-block, chunk-aligned span.
type chunkAddress uintptr

func (c chunkAddress) addr() uintptr { return uintptr(c) }

func (c chunkAddress) block(i int) blockAddress {
	return blockAddress(uintptr(c) + uintptr(i)<<blockBits)
}

// Chunk header lives in the first block's reserved header lines, past the
// per-block state/pinned/lineFlags bytes of block 0 (which chunk.go never
// touches directly — it only needs two int32 counters per chunk, the
// Unavailable and Recyclable block counts, kept right after block 0's own
// header bytes to stay out of their way).
const chunkHeaderArrayOffset = blockHeaderLineFlagsBase + effectiveLineCount

func (c chunkAddress) unavailableCountPtr() *int32 {
	return (*int32)(unsafe.Pointer(uintptr(c) + chunkHeaderArrayOffset))
}

func (c chunkAddress) recyclableCountPtr() *int32 {
	return (*int32)(unsafe.Pointer(uintptr(c) + chunkHeaderArrayOffset + 4))
}

// initialize sets every block in the chunk to Free and zeroes the chunk's own
// bookkeeping counters.
func (c chunkAddress) initialize() {
	*c.unavailableCountPtr() = 0
	*c.recyclableCountPtr() = 0
	for i := 0; i < blockCountPerChunk; i++ {
		c.block(i).initialize()
	}
}

// hasFreeBlocks reports whether any block in the chunk is fully Free.
func (c chunkAddress) hasFreeBlocks() bool {
	return *c.unavailableCountPtr()+*c.recyclableCountPtr() < blockCountPerChunk
}

func (c chunkAddress) hasRecyclableBlocks() bool {
	return *c.recyclableCountPtr() > 0
}

func (c chunkAddress) isEmpty() bool {
	return *c.unavailableCountPtr() == 0 && *c.recyclableCountPtr() == 0
}

// noteBlockStateChange adjusts the chunk's per-state block counters when a
// block transitions from 'from' to 'to'. Free is not tracked directly; it is
// derived as blockCountPerChunk - unavailable - recyclable.
func (c chunkAddress) noteBlockStateChange(from, to blockState) {
	switch from {
	case blockUnavailable:
		*c.unavailableCountPtr()--
	case blockRecyclable:
		*c.recyclableCountPtr()--
	}
	switch to {
	case blockUnavailable:
		*c.unavailableCountPtr()++
	case blockRecyclable:
		*c.recyclableCountPtr()++
	}
}

func (c chunkAddress) forEachBlock(f func(blockAddress)) {
	for i := 0; i < blockCountPerChunk; i++ {
		f(c.block(i))
	}
}
