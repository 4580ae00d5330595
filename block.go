package gcix

import "unsafe"

// blockAddress is the base address of a 64KiB block, always block-aligned.
// Mirrors the teacher's gcBlock uintptr in gc_blocks.go: a bare address
// wrapped in a distinct type, with every block operation hung off it as a
// method instead of threading a *Block struct pointer around.
type blockAddress uintptr

// blockFromAny truncates an arbitrary address inside a block down to the
// block's base address.
func blockFromAny(addr uintptr) blockAddress {
	return blockAddress(addr & blockAddressMask)
}

func (b blockAddress) addr() uintptr { return uintptr(b) }

func (b blockAddress) chunk() chunkAddress {
	return chunkAddress(uintptr(b) &^ (chunkSizeInBytes - 1))
}

func (b blockAddress) indexInChunk() int {
	return int((uintptr(b) - uintptr(b.chunk())) >> blockBits)
}

// Header byte layout, packed into the block's first two (reserved) lines:
//
//	offset 0:        state (blockState)
//	offset 1:        pinned flag, carried but never consulted (spec.md §9)
//	offset 2..2+254: lineFlags, one byte per payload line
const (
	blockHeaderStateOffset   = 0
	blockHeaderPinnedOffset  = 1
	blockHeaderLineFlagsBase = 2
)

func (b blockAddress) bytePtr(off uintptr) *byte {
	return (*byte)(unsafe.Pointer(uintptr(b) + off))
}

func (b blockAddress) state() blockState {
	return blockState(*b.bytePtr(blockHeaderStateOffset))
}

func (b blockAddress) setState(s blockState) {
	*b.bytePtr(blockHeaderStateOffset) = byte(s)
}

func (b blockAddress) pinned() bool {
	return *b.bytePtr(blockHeaderPinnedOffset) != 0
}

func (b blockAddress) setPinned(v bool) {
	if v {
		*b.bytePtr(blockHeaderPinnedOffset) = 1
	} else {
		*b.bytePtr(blockHeaderPinnedOffset) = 0
	}
}

func (b blockAddress) lineFlagPtr(line int) *byte {
	return b.bytePtr(blockHeaderLineFlagsBase + uintptr(line))
}

// payloadStart is the address of the first byte of line 0's payload (i.e.
// past the two reserved header lines).
func (b blockAddress) payloadStart() uintptr {
	return uintptr(b) + headerSizeInBytes
}

func (b blockAddress) lineAddress(line int) uintptr {
	return b.payloadStart() + uintptr(line)<<lineBits
}

func (b blockAddress) lineIndexForAddress(addr uintptr) int {
	return int((addr - b.payloadStart()) >> lineBits)
}

// initialize resets a freshly acquired block to the Free state with no line
// metadata, ready to be bump-allocated into from scratch.
func (b blockAddress) initialize() {
	b.setState(blockFree)
	b.setPinned(false)
	for i := 0; i < effectiveLineCount; i++ {
		*b.lineFlagPtr(i) = lineFlagEmpty
	}
}

func (b blockAddress) lineContainsObject(line int) bool {
	return *b.lineFlagPtr(line)&lineFlagContainsObject != 0
}

func (b blockAddress) lineMarked(line int) bool {
	return *b.lineFlagPtr(line)&lineFlagMarked != 0
}

func (b blockAddress) setLineMarked(line int) {
	p := b.lineFlagPtr(line)
	*p |= lineFlagMarked
}

// recordObjectStart sets the ContainsObject bit for the line that an
// object's header falls in, along with its offset within that line, unless
// the line already records an earlier object (the first object in a line is
// the one conservative resolution must find; later objects in the same line
// are reached by the forward object-chain walk instead).
func (b blockAddress) recordObjectStart(headerAddr uintptr) {
	line := b.lineIndexForAddress(headerAddr)
	p := b.lineFlagPtr(line)
	if *p&lineFlagContainsObject != 0 {
		return
	}
	offsetInLine := (headerAddr - b.lineAddress(line))
	*p = lineFlagContainsObject | makeLineFlagOffset(offsetInLine)
}

func (b blockAddress) firstObjectInLine(line int) objectAddress {
	flags := *b.lineFlagPtr(line)
	if flags&lineFlagContainsObject == 0 {
		return 0
	}
	return objectAddress(b.lineAddress(line) + lineFlagOffset(flags))
}

// markLines sets the Marked bit on every line an object (of the given total
// header-to-header span) touches, so recycle() can tell live lines from dead
// ones without re-walking every object.
func (b blockAddress) markLines(headerAddr uintptr, totalSize uintptr) {
	start := b.lineIndexForAddress(headerAddr)
	end := b.lineIndexForAddress(headerAddr + totalSize - 1)
	for i := start; i <= end; i++ {
		b.setLineMarked(i)
	}
}

// clearMarkedLines drops every line's Marked bit ahead of a fresh mark
// phase. ContainsObject and the object offset are left untouched: they
// describe the block's static layout, not liveness.
func (b blockAddress) clearMarkedLines() {
	for i := 0; i < effectiveLineCount; i++ {
		p := b.lineFlagPtr(i)
		*p &^= lineFlagMarked
	}
}

// hole is a free, bump-allocatable byte range inside a block.
type hole struct {
	start uintptr
	end   uintptr
}

func (h hole) size() uintptr { return h.end - h.start }

// recycle scans the block's line metadata and returns every run of
// consecutive unmarked lines as a hole, clearing ContainsObject/Marked and
// zeroing the reclaimed bytes of each dead line as it goes (so a stale
// pointer value can never be mistaken for live data by the conservative
// resolver). A block with zero live lines becomes Free; a block with at
// least one but not all lines live becomes Recyclable; a block with every
// line live stays Unavailable and yields no holes.
//
// Mirrors BlockData::Recycle in the original: walk line by line, coalesce
// consecutive free lines into a single hole, rebuild the bump cursor/limit
// for reuse.
func (b blockAddress) recycle() []hole {
	var holes []hole
	var cur *hole
	liveLines := 0

	for i := 0; i < effectiveLineCount; i++ {
		if b.lineMarked(i) {
			liveLines++
			cur = nil
			continue
		}
		p := b.lineFlagPtr(i)
		*p = lineFlagEmpty
		zero(b.lineAddress(i), lineSizeInBytes)

		if cur != nil {
			cur.end = b.lineAddress(i) + lineSizeInBytes
			continue
		}
		holes = append(holes, hole{start: b.lineAddress(i), end: b.lineAddress(i) + lineSizeInBytes})
		cur = &holes[len(holes)-1]
	}

	b.clearMarkedLines()

	switch {
	case liveLines == 0:
		b.setState(blockFree)
	case liveLines == effectiveLineCount:
		b.setState(blockUnavailable)
		return nil
	default:
		b.setState(blockRecyclable)
	}
	return holes
}

// findEnclosingObject implements the backward-scan-then-forward-walk half of
// conservative interior pointer resolution for an address already known to
// lie inside this block: scan lines backward from addr's line to find the
// nearest line recording an object start at or before addr, then walk the object chain
// forward from there until an object's span covers addr (or the next
// object's header would start after addr, which can only happen if addr
// doesn't point into any live object at all).
func (b blockAddress) findEnclosingObject(addr uintptr) objectAddress {
	line := b.lineIndexForAddress(addr)
	if line < 0 || line >= effectiveLineCount {
		return 0
	}
	start := -1
	for i := line; i >= 0; i-- {
		// A line whose first object starts after addr can't anchor the walk:
		// addr may lie in an object that began in an earlier line.
		if b.lineContainsObject(i) && uintptr(b.firstObjectInLine(i)) <= addr {
			start = i
			break
		}
	}
	if start < 0 {
		return 0
	}

	cur := b.firstObjectInLine(start)
	for cur.valid() {
		// A zero header word is unallocated (or reclaimed) memory, never an
		// object: every allocated object has a non-zero size field.
		if cur.header() == 0 {
			return 0
		}
		span, ok := objectSpan(cur)
		if !ok {
			return 0
		}
		curHeader := uintptr(cur)
		if addr >= curHeader && addr < curHeader+span {
			return cur
		}
		next := curHeader + span
		if next > addr {
			return 0
		}
		if b.lineIndexForAddress(next) >= effectiveLineCount {
			return 0
		}
		cur = objectAddress(next)
	}
	return 0
}

// objectSpan returns the total header-to-header byte span of the object
// rooted at h (Standard or Large only; an Inner header is never itself a
// chain link). ok is false for a header whose type/size can't be walked.
func objectSpan(h objectAddress) (uintptr, bool) {
	switch h.objectType() {
	case objectTypeStandard:
		return headerTotalSize + standardObjectAddress(h).size(), true
	case objectTypeLarge:
		return headerTotalSize + largeObjectAddress(h).size(), true
	default:
		return 0, false
	}
}

func zero(addr uintptr, size uintptr) {
	b := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	for i := range b {
		b[i] = 0
	}
}
