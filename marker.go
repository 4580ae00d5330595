package gcix

// marker drives one mark phase: starting from a set of conservative root
// candidates, it resolves each candidate to the object it points into (or
// discards it as noise), marks that object and the block lines it spans,
// and pushes it onto a worklist so its own outgoing pointers get the same
// treatment. Grounded on the original's Marker.h, whose recursive Mark
// walks inner-object/visitor/inline-count cases exactly this way; this port
// uses an explicit worklist instead of C++ call-stack recursion, the same
// trade the teacher makes in gc_blocks.go's markRoot/finishMark (an
// explicit queue rather than a recursive walk, since an adversarial object
// graph could otherwise blow the goroutine's stack).
type marker struct {
	collector *GlobalAllocator
	worklist  []objectAddress
	// marked records every header this cycle set the Marked bit on, so the
	// bit can be cleared again once the cycle's sweep has used it — the
	// header-level Marked bit (unlike the per-line one, which recycle()
	// already resets every cycle) has nothing else that resets it.
	marked []objectAddress
}

func newMarker(c *GlobalAllocator) *marker {
	return &marker{collector: c}
}

// VisitPointer implements VisitorContext: every outgoing pointer field a
// ClassDescriptor's Visitor reports during tracing flows back through here.
func (m *marker) VisitPointer(_ uintptr, target uintptr) {
	m.markCandidate(target)
}

// markCandidate resolves addr (a raw word from a root slot, a stack slot, or
// a traced field) to the live object it points into, if any, and marks it.
// Values that don't resolve to a live, known object are silently discarded —
// this is exactly what makes the resolver "conservative": most candidate
// words are ordinary integers, not pointers, and must be tolerated as such.
func (m *marker) markCandidate(addr uintptr) {
	if addr == 0 {
		return
	}
	h := m.collector.resolveConservative(addr)
	if !h.valid() {
		return
	}
	m.markObject(h)
}

// markObject marks h (following an Inner header back to its outer object
// first) and, the first time it's marked, queues it for tracing.
func (m *marker) markObject(h objectAddress) {
	if h.objectType() == objectTypeInner {
		h = innerObjectAddress(h).outer()
	}
	if h.isMarked() {
		return
	}
	h.setMarked()
	m.marked = append(m.marked, h)

	switch h.objectType() {
	case objectTypeStandard:
		s := standardObjectAddress(h)
		blockFromAny(uintptr(h)).markLines(uintptr(h), headerTotalSize+s.size())
	case objectTypeLarge:
		// Large objects live outside block/line bookkeeping; marking the
		// header bit above is the whole of it.
	default:
		return
	}
	m.worklist = append(m.worklist, h)
}

// run drains the worklist, tracing each marked object's outgoing pointers
// through its ClassDescriptor until no new objects are discovered.
func (m *marker) run() {
	for len(m.worklist) > 0 {
		h := m.worklist[len(m.worklist)-1]
		m.worklist = m.worklist[:len(m.worklist)-1]

		desc := m.collector.descriptorFor(h)
		if desc == nil {
			continue
		}
		desc.trace(h.toUserAddress(), m)
	}
}

// clearMarks resets the header Marked bit on every object this cycle set it
// on. Must run after sweep, since sweepLargeObjects reads the bit to decide
// which large objects survived; clearing it again there is a harmless no-op.
func (m *marker) clearMarks() {
	for _, h := range m.marked {
		h.clearMarked()
	}
}
