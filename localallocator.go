package gcix

import "github.com/xoofx/gcix/internal/collections"

// mediumObjectThreshold marks the boundary past which an object is
// considered "medium": too big to comfortably fit whatever small hole the
// current block has left, and therefore routed to a dedicated overflow
// block instead of repeatedly re-searching an already fragmented one.
// Grounded on LocalAllocator.cpp's Allocate, which special-cases objects
// larger than a single line the same way.
const mediumObjectThreshold = lineSizeInBytes

// Mutator is a per-thread (per-goroutine, in this port) allocation context:
// spec.md's ThreadLocalAllocator (C7). It owns a bump cursor/limit into a
// current block, a queue of the block's remaining holes, and a second
// cursor/limit into a dedicated overflow block used only for medium
// objects, so that a single bad-fit medium allocation doesn't force a
// rescan of the primary block's hole list.
//
// It deliberately does not cache a StackFrame across calls: unlike the
// native stack StackFrame.h was grounded on, a goroutine's stack can be
// moved by the runtime (growth copies it elsewhere), so an anchor address
// captured once in NewMutator and reused by every later Allocate/Collect
// call could end up pointing at memory that is no longer part of this
// goroutine's stack at all. Every call that might trigger a collection
// captures its own anchor at entry instead, keeping the scanned window
// confined to that single call's live frames.
type Mutator struct {
	collector *GlobalAllocator

	block         blockAddress
	cursor, limit uintptr
	holes         []hole

	overflowBlock                 blockAddress
	overflowCursor, overflowLimit uintptr

	ssb *collections.SequentialStoreBufferHandle
}

// NewMutator creates a Mutator bound to the calling goroutine. Every
// allocation and Collect call made through the returned Mutator must happen
// on that same goroutine: Go gives no portable way to scan a different
// goroutine's stack.
func (a *GlobalAllocator) NewMutator() *Mutator {
	m := &Mutator{
		collector: a,
		ssb:       a.ssb.NewHandle(),
	}
	a.registerMutator(m)
	return m
}

// Close releases the Mutator's registration with its collector. It does not
// release the Mutator's current block(s); those stay Unavailable until the
// next cycle sweeps their now-unreachable contents.
func (m *Mutator) Close() {
	m.collector.unregisterMutator(m)
}

// resetBumpRegion drops the mutator's current and overflow bump regions and
// its queued holes, per spec.md §4.5 step 1: a collection is about to
// recycle every Unavailable block's dead lines, including whatever's left
// of the region this mutator was bumping into, so the mutator must not hold
// on to cursor/limit/block values describing memory it no longer owns. The
// next Allocate call is forced through refillBlock/refillOverflow, which ask
// the collector for blocks fresh from the post-sweep pools.
func (m *Mutator) resetBumpRegion() {
	m.block = 0
	m.cursor, m.limit = 0, 0
	m.holes = nil
	m.overflowBlock = 0
	m.overflowCursor, m.overflowLimit = 0, 0
}

// PushStoreBufferEntry appends ptr to the mutator's sequential store
// buffer, for callers batching root/remembered-set writes (spec.md §8
// boundary scenario 7) rather than calling AddRoot directly on every write.
func (m *Mutator) PushStoreBufferEntry(ptr uintptr) {
	m.ssb.Push(ptr)
}

// DrainStoreBuffer flushes every buffered pointer through AddRoot, in the
// LIFO order the buffer pops them back out in.
func (m *Mutator) DrainStoreBuffer() {
	m.ssb.Drain(m.collector.AddRoot)
}

// Collect runs one cooperative collection rooted at this Mutator's own,
// freshly captured stack window, for callers that want to force a cycle
// explicitly rather than waiting on maybeCollect's allocation heuristic.
func (m *Mutator) Collect() {
	m.collector.Collect(captureStackFrame())
}

func align4(size uintptr) uintptr {
	return (size + 3) &^ 3
}

func bump(cursor, limit *uintptr, total uintptr) (uintptr, bool) {
	if *limit < *cursor || *limit-*cursor < total {
		return 0, false
	}
	addr := *cursor
	*cursor += total
	return addr, true
}

// Allocate implements spec.md's LocalAllocator::Allocate: try the current
// bump region, then the current block's remaining holes, then either an
// overflow block (medium objects) or a freshly requested block (small
// objects), triggering one cooperative collection if the collector has no
// block to hand over. Returns (0, nil) on OOM — never an error — matching
// the embedding API's "OOM is a routine nil, not a failure" contract. A
// missing descriptor is reported as a wrapped ErrInvalidClassDescriptor;
// a size too big for a block is not an error, it goes to the large object
// space instead.
//
// anchor is captured once here, at the outermost frame of this call chain,
// and threaded down into finish/refillBlock/refillOverflow rather than read
// back off the Mutator: it must describe this call's own live stack frames,
// not a value left over from some earlier, possibly since-relocated call.
func (m *Mutator) Allocate(size uintptr, desc *ClassDescriptor) (uintptr, error) {
	anchor := captureStackFrame()

	if desc == nil {
		return 0, wrapf(ErrInvalidClassDescriptor, "allocate: size=%d", size)
	}
	if size == 0 {
		size = 4
	}
	size = align4(size)
	total := headerTotalSize + size

	if size > maxObjectSizePerBlock {
		ptr := m.collector.AllocateLargeObject(size, desc)
		if ptr == 0 {
			return 0, nil
		}
		return ptr, nil
	}

	if addr, ok := bump(&m.cursor, &m.limit, total); ok {
		return m.finish(addr, size, desc, anchor), nil
	}

	if addr, ok := m.bumpFromHoles(total); ok {
		return m.finish(addr, size, desc, anchor), nil
	}

	if total > mediumObjectThreshold {
		if addr, ok := bump(&m.overflowCursor, &m.overflowLimit, total); ok {
			return m.finish(addr, size, desc, anchor), nil
		}
		if err := m.refillOverflow(anchor); err != nil {
			return 0, nil
		}
		if addr, ok := bump(&m.overflowCursor, &m.overflowLimit, total); ok {
			return m.finish(addr, size, desc, anchor), nil
		}
		return 0, nil
	}

	if err := m.refillBlock(anchor); err != nil {
		return 0, nil
	}
	if addr, ok := bump(&m.cursor, &m.limit, total); ok {
		return m.finish(addr, size, desc, anchor), nil
	}
	if addr, ok := m.bumpFromHoles(total); ok {
		return m.finish(addr, size, desc, anchor), nil
	}
	return 0, nil
}

func (m *Mutator) finish(headerAddr uintptr, size uintptr, desc *ClassDescriptor, anchor StackFrame) uintptr {
	h := objectAddress(headerAddr)
	obj := newStandardObject(h, size)
	blockFromAny(headerAddr).recordObjectStart(headerAddr)
	m.collector.registerDescriptor(h, desc)
	m.collector.counters.bytesAllocated.Add(uint64(size))
	m.collector.maybeCollect(anchor, uint64(size))
	return obj.address().toUserAddress()
}

// bumpFromHoles walks the block's remaining holes in address order looking
// for the first one at least total bytes long, removes it from the hole
// list, installs the whole hole as the active bump region (whatever was left
// of the previous active region is dropped), and bumps out of it; the rest
// of the hole stays in the active region for later bumps.
func (m *Mutator) bumpFromHoles(total uintptr) (uintptr, bool) {
	for i, h := range m.holes {
		if h.size() < total {
			continue
		}
		m.holes = append(m.holes[:i], m.holes[i+1:]...)
		m.cursor, m.limit = h.start, h.end
		return bump(&m.cursor, &m.limit, total)
	}
	return 0, false
}

// refillBlock asks the collector for a new block (preferring a Recyclable
// one over a fresh Free one), triggering a single cooperative collection
// first if none is immediately available.
func (m *Mutator) refillBlock(anchor StackFrame) error {
	b, holes, err := m.collector.requestBlock(false)
	if err != nil {
		m.collector.Collect(anchor)
		b, holes, err = m.collector.requestBlock(false)
		if err != nil {
			return err
		}
	}
	m.block = b
	m.holes = nil
	if len(holes) > 0 {
		m.cursor, m.limit = holes[0].start, holes[0].end
		m.holes = append(m.holes, holes[1:]...)
	}
	return nil
}

// refillOverflow asks for a dedicated, empty block for medium objects, so a
// single large-ish allocation doesn't force a rescan of the primary
// block's (possibly heavily fragmented) hole list.
func (m *Mutator) refillOverflow(anchor StackFrame) error {
	b, holes, err := m.collector.requestBlock(true)
	if err != nil {
		m.collector.Collect(anchor)
		b, holes, err = m.collector.requestBlock(true)
		if err != nil {
			return err
		}
	}
	m.overflowBlock = b
	if len(holes) > 0 {
		m.overflowCursor, m.overflowLimit = holes[0].start, holes[0].end
	}
	return nil
}
