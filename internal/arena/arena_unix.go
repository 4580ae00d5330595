//go:build unix

package arena

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// acquire over-maps by one alignment unit so it can carve out a
// chunkAlign-aligned sub-region, then trims the mapping down with two
// Munmap calls on the unused head/tail — the same over-allocate-then-trim
// trick the original's Utility/Memory.cpp uses for aligned allocation,
// adapted from malloc+align to mmap+align.
func acquire(chunkSize, chunkAlign uintptr) (*Chunk, error) {
	total := chunkSize + chunkAlign
	raw, err := unix.Mmap(-1, 0, int(total), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, errors.Wrap(ErrAcquireFailed, err.Error())
	}

	base := uintptr(unsafe.Pointer(&raw[0]))
	alignedBase := (base + chunkAlign - 1) &^ (chunkAlign - 1)
	headTrim := alignedBase - base
	tailTrim := total - headTrim - chunkSize

	if headTrim > 0 {
		if err := unix.Munmap(raw[:headTrim]); err != nil {
			return nil, errors.Wrap(ErrAcquireFailed, err.Error())
		}
	}
	if tailTrim > 0 {
		if err := unix.Munmap(raw[headTrim+chunkSize:]); err != nil {
			return nil, errors.Wrap(ErrAcquireFailed, err.Error())
		}
	}

	return &Chunk{
		base:  alignedBase,
		raw:   raw[headTrim : headTrim+chunkSize],
		align: chunkAlign,
	}, nil
}

func release(c *Chunk) error {
	if err := unix.Munmap(c.raw); err != nil {
		return errors.Wrap(ErrAcquireFailed, err.Error())
	}
	return nil
}
