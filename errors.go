package gcix

import "github.com/pkg/errors"

// Sentinel errors for the Go-idiomatic entry points this port adds
// alongside the embedding API (see the Collector/Mutator handle API).
// The embedding API itself never returns these: AllocateStandardObject and
// AllocateLargeObject signal OOM with a nil pointer, exactly as specified,
// since that's a routine outcome callers are expected to check for, not a
// failure to propagate.
var (
	// ErrOutOfMemory is wrapped with context by the allocation path when
	// the global allocator can't satisfy a block or chunk request.
	ErrOutOfMemory = errors.New("gcix: out of memory")

	// ErrInvalidClassDescriptor is returned when a nil ClassDescriptor is
	// passed to an allocation call that requires tracing information.
	ErrInvalidClassDescriptor = errors.New("gcix: invalid class descriptor")
)

// wrapf is a thin alias kept local to this package so call sites read the
// same way the pack's own error wrapping does (vam/block.go, vam/allocator.go).
func wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}
