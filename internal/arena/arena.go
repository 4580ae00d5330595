// Package arena acquires and releases the block-aligned, anonymous backing
// memory that gcix's chunks live in. The collector core never manages
// ordinary Go-heap memory directly — ranges under the host Go GC's own
// control can't host a synthetic object header, and a second collector
// scanning the same memory as the host GC would step on it — so every chunk
// is carved out of an OS mapping instead, mirroring the teacher's own
// heapStart..heapEnd arena in runtime/gc_blocks.go, which is likewise memory
// the Go runtime does not scan.
package arena

import "github.com/pkg/errors"

// ErrAcquireFailed wraps any underlying mapping failure.
var ErrAcquireFailed = errors.New("arena: failed to acquire chunk memory")

// Chunk is a single block-aligned mapping, sized and aligned by the caller's
// chunkSize/chunkAlign (gcix always passes its own chunk geometry).
type Chunk struct {
	base  uintptr
	raw   []byte
	align uintptr
}

// Base returns the chunk-aligned base address of the mapping.
func (c *Chunk) Base() uintptr { return c.base }

// Acquire reserves a zero-filled, chunkAlign-aligned region of chunkSize
// bytes from the OS. release must eventually be called exactly once on the
// returned Chunk to avoid leaking the mapping.
func Acquire(chunkSize, chunkAlign uintptr) (*Chunk, error) {
	return acquire(chunkSize, chunkAlign)
}

// Release returns a previously acquired chunk's memory to the OS.
func Release(c *Chunk) error {
	return release(c)
}
