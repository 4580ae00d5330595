package gcix

import "unsafe"

// objectAddress denotes the address of an object's 4-byte header word, not
// the user-visible object itself. The user object begins headerTotalSize
// bytes after it. Mirrors the teacher's habit (gcBlock uintptr in
// gc_blocks.go) of wrapping a raw address in a distinct uintptr-based type
// and hanging all the bit-twiddling off it as methods, rather than using a
// pointer-typed struct.
type objectAddress uintptr

// objectFromAddress converts a user-visible pointer into the header address
// that precedes it.
func objectFromAddress(obj uintptr) objectAddress {
	return objectAddress(obj - headerTotalSize)
}

// toUserAddress returns the address of the user-visible object this header
// describes.
func (h objectAddress) toUserAddress() uintptr {
	return uintptr(h) + headerTotalSize
}

func (h objectAddress) valid() bool {
	return h != 0
}

// ptrAt views addr as the address of a uintptr-sized slot, for reading the
// current value a root or stack slot holds.
func ptrAt(addr uintptr) unsafe.Pointer {
	return unsafe.Pointer(addr)
}

func (h objectAddress) headerPtr() *uint32 {
	return (*uint32)(unsafe.Pointer(uintptr(h)))
}

func (h objectAddress) header() uint32 {
	return *h.headerPtr()
}

func (h objectAddress) setHeader(v uint32) {
	*h.headerPtr() = v
}

func (h objectAddress) objectType() objectType {
	return objectType(h.header() & objectTypeMask)
}

// isMarked reports whether the mark bit is set. Reads are always plain,
// non-atomic loads: a torn read of a bit that is either fully set or fully
// clear is not possible on any target this port cares about.
func (h objectAddress) isMarked() bool {
	return h.header()&objectMarked != 0
}

// setMarked ORs in the mark bit with a plain, non-atomic read-modify-write.
// Two mutators racing to mark the same object both write the same bit value;
// the redundant write is harmless, per the concurrency model.
func (h objectAddress) setMarked() {
	p := h.headerPtr()
	*p |= objectMarked
}

func (h objectAddress) clearMarked() {
	p := h.headerPtr()
	*p &^= objectMarked
}

func (h objectAddress) isStickyLog() bool {
	return h.header()&objectStickyLog != 0
}

func (h objectAddress) setStickyLog() {
	p := h.headerPtr()
	*p |= objectStickyLog
}

// standardObjectAddress is an object allocated directly out of block lines:
// its payload size in bytes (not counting the header; the full span is
// headerTotalSize + size) is stored unscaled in bits 2..15 of the header word.
type standardObjectAddress objectAddress

func newStandardObject(h objectAddress, size uintptr) standardObjectAddress {
	v := uint32(objectTypeStandard) | uint32(size)&objectSizeMask
	h.setHeader(v)
	return standardObjectAddress(h)
}

func (s standardObjectAddress) address() objectAddress { return objectAddress(s) }

func (s standardObjectAddress) size() uintptr {
	return uintptr(objectAddress(s).header() & objectSizeMask)
}

// largeObjectAddress is an object backed by its own dedicated run of chunks,
// outside the block/line machinery entirely. Size occupies almost the whole
// header word, since large objects have no block-relative offset to share
// bits with. Unlike the Standard-object size field, it's stored scaled down
// by 4 and then masked with objectLargeSizeAndInnerOffsetMask, which raises
// the representable range to ~4GiB but drops bits 2..3 of the size as well:
// a size round-trips exactly only when it is a multiple of 16, and any other
// size decodes rounded down to a multiple of 16. Grounded on
// ObjectAddress.h's Initialize (`(size/4) & LargeSizeAndInnerObjectOffsetMask`)
// and Size (`(ObjectFlags & mask) << 2`).
type largeObjectAddress objectAddress

func newLargeObject(h objectAddress, size uintptr) largeObjectAddress {
	v := uint32(objectTypeLarge) | uint32(size>>2)&objectLargeSizeAndInnerOffsetMask
	h.setHeader(v)
	return largeObjectAddress(h)
}

func (l largeObjectAddress) address() objectAddress { return objectAddress(l) }

func (l largeObjectAddress) size() uintptr {
	return uintptr(objectAddress(l).header()&objectLargeSizeAndInnerOffsetMask) << 2
}

// innerObjectAddress marks an object as an interior view into an outer
// Standard or Large object; offsetToOuter is the backward byte distance from
// this header to the outer object's header, used by the conservative
// resolver to walk back to the real object before marking it. It shares the
// Large-object size bit range (objectLargeSizeAndInnerOffsetMask) but is
// stored unscaled: offsets are always 4-byte aligned, so their low two bits
// are zero and leave room for the type tag.
type innerObjectAddress objectAddress

func newInnerObject(h objectAddress, offsetToOuter uintptr) innerObjectAddress {
	v := uint32(objectTypeInner) | uint32(offsetToOuter)&objectLargeSizeAndInnerOffsetMask
	h.setHeader(v)
	return innerObjectAddress(h)
}

func (i innerObjectAddress) address() objectAddress { return objectAddress(i) }

func (i innerObjectAddress) offsetToOuter() uintptr {
	return uintptr(objectAddress(i).header() & objectLargeSizeAndInnerOffsetMask)
}

func (i innerObjectAddress) outer() objectAddress {
	return objectAddress(uintptr(i) - i.offsetToOuter())
}

// forwardObjectAddress exists only to complete the bit-layout contract
// described by spec.md §3/§6; this mark-region core never moves objects, so
// nothing in the collector ever writes this tag. It is kept so that
// objectType's four-way switch and the header encoding stay total functions
// rather than partial ones with an unrepresentable case.
type forwardObjectAddress objectAddress

func (f forwardObjectAddress) address() objectAddress { return objectAddress(f) }

// VisitorContext is passed by the marker to a ClassDescriptor's Visitor so it
// can report each outgoing pointer field.
type VisitorContext interface {
	// VisitPointer reports one outgoing reference field at fieldAddr,
	// pointing at target. target may be the zero value, meaning "this field
	// was nil"; implementations should skip it.
	VisitPointer(fieldAddr uintptr, target uintptr)
}

// VisitorFunc walks the pointer fields of the object at obj, calling
// ctx.VisitPointer for each one. It is the Go realization of the C++
// visitor function stored at OffsetToVisitorFromVTBL; there is no vtable in
// this port, so ClassDescriptor carries the function directly.
type VisitorFunc func(obj uintptr, ctx VisitorContext)

// ClassDescriptor describes how to trace one kind of object. Exactly one of
// Visitor or InlineRefCount should be meaningful for a given descriptor:
// InlineRefCount > 0 means the object's first InlineRefCount pointer-sized
// slots are its references (the common case for closures/arrays of refs),
// traced without calling into Visitor at all; InlineRefCount == 0 means
// Visitor is called, if set.
//
// spec.md's C++ ancestor selects between these two cases by stealing the low
// bit of a function pointer stored in the vtable slot. Go forbids converting
// a func value to uintptr and back, so this port uses an explicit tag field
// instead — the resolution spec.md §9 itself anticipates for targets where
// bit-stealing isn't safe.
type ClassDescriptor struct {
	Visitor        VisitorFunc
	InlineRefCount int
}

func (c *ClassDescriptor) trace(obj uintptr, ctx VisitorContext) {
	if c == nil {
		return
	}
	if c.InlineRefCount > 0 {
		for i := 0; i < c.InlineRefCount; i++ {
			slot := obj + uintptr(i)*unsafe.Sizeof(uintptr(0))
			target := *(*uintptr)(unsafe.Pointer(slot))
			ctx.VisitPointer(slot, target)
		}
		return
	}
	if c.Visitor != nil {
		c.Visitor(obj, ctx)
	}
}
