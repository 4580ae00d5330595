//go:build !unix

package arena

import "unsafe"

// acquire is the portable fallback for targets without an unix.Mmap: it
// over-allocates a plain Go byte slice and aligns within it. The memory is
// still host-GC-visible in this fallback (Go offers no portable anonymous
// mapping primitive outside unix), which is a known limitation of running
// off this path rather than golang.org/x/sys/unix's mmap; gcix itself never
// stores a Go pointer inside arena memory, so the host GC won't find
// anything to chase through it, but the bytes are not reclaimed as
// eagerly as an explicit munmap would.
func acquire(chunkSize, chunkAlign uintptr) (*Chunk, error) {
	raw := make([]byte, chunkSize+chunkAlign)
	base := uintptr(unsafe.Pointer(&raw[0]))
	alignedBase := (base + chunkAlign - 1) &^ (chunkAlign - 1)
	off := alignedBase - base

	return &Chunk{
		base:  alignedBase,
		raw:   raw[off : off+chunkSize],
		align: chunkAlign,
	}, nil
}

func release(c *Chunk) error {
	c.raw = nil
	return nil
}
