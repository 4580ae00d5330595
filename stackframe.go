package gcix

import "unsafe"

// StackFrame anchors one end of the conservative stack-scanning window for a
// Mutator. Grounded on the original's StackFrame.h, whose Initialize/
// Capture<T> pair grabs the address of a local variable to mark "the stack
// pointer was somewhere around here" without any target-specific register
// access. Go forbids reading SP directly outside assembly, so this port
// uses the same trick: the address of a stack-local variable is a
// sufficiently good proxy for the stack pointer at the call site, since the
// compiler lays out a function's locals within its own frame regardless of
// what it does with registers.
type StackFrame struct {
	anchor uintptr
}

//go:noinline
func captureStackFrame() StackFrame {
	var local byte
	return StackFrame{anchor: uintptr(unsafe.Pointer(&local))}
}

// window returns the [low, high) byte range between this frame's anchor and
// the current call site's, in address order (the stack can grow in either
// direction depending on GOARCH's calling convention, so the order isn't
// assumed).
func (f StackFrame) window(current StackFrame) (low, high uintptr) {
	if f.anchor <= current.anchor {
		return f.anchor, current.anchor
	}
	return current.anchor, f.anchor
}

// scanConservative calls visit once for every uintptr-aligned word in the
// window between f and the frame captured at the call to scanConservative
// itself, treating every word whose value could plausibly be a heap address
// as a potential root. This must only ever be called from the same
// goroutine that owns f — Go gives no portable way to read another
// goroutine's stack, which is exactly the cooperative, per-mutator
// limitation spec.md's "multi-mutator correctness" open question carries
// forward rather than resolves.
//
// f must be captured at the outermost frame of the same call chain that
// leads here, never cached and reused across separate calls: a goroutine's
// stack can be grown and relocated by the runtime between calls, so an
// anchor captured long before this call may no longer address this
// goroutine's live stack at all. Callers (see Mutator.Allocate/Collect)
// capture a fresh StackFrame at their own entry point and thread it down,
// rather than storing one on long-lived state.
func (f StackFrame) scanConservative(visit func(addr uintptr)) {
	current := captureStackFrame()
	low, high := f.window(current)
	low &^= uintptr(unsafe.Sizeof(uintptr(0)) - 1)
	for addr := low; addr+unsafe.Sizeof(uintptr(0)) <= high; addr += unsafe.Sizeof(uintptr(0)) {
		val := *(*uintptr)(unsafe.Pointer(addr))
		visit(val)
	}
}
