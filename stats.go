package gcix

import "sync/atomic"

// GCStats reports cumulative collector counters, adapted from the teacher's
// runtime/debug and runtime/metrics stub packages into a real surface over
// the global allocator's own bookkeeping (those two teacher packages are
// unimplemented placeholders; this port gives them a body instead of
// dropping the concern).
type GCStats struct {
	// NumCollections is the number of completed collection cycles.
	NumCollections uint64
	// BytesAllocated is the cumulative number of bytes ever handed out by
	// Allocate (Standard + Large), never decremented on free.
	BytesAllocated uint64
	// ChunksAcquired / ChunksReleased count chunk-granularity traffic with
	// the arena backing store.
	ChunksAcquired uint64
	ChunksReleased uint64
	// BlocksUnavailable / BlocksRecyclable / BlocksFree is a snapshot of
	// block occupancy across every chunk the allocator currently owns, as
	// of the last completed collection.
	BlocksUnavailable int64
	BlocksRecyclable  int64
	BlocksFree        int64
}

// collectorCounters holds the live, atomically-updated counters GCStats is
// read from. Kept as a separate struct (rather than fields directly on
// GlobalAllocator) so ReadMemStats can snapshot them without taking the
// allocator's structural lock.
type collectorCounters struct {
	numCollections    atomic.Uint64
	bytesAllocated    atomic.Uint64
	bytesSinceCollect atomic.Uint64
	chunksAcquired    atomic.Uint64
	chunksReleased    atomic.Uint64
	blocksUnavailable atomic.Int64
	blocksRecyclable  atomic.Int64
	blocksFree        atomic.Int64
}

// ReadMemStats returns a snapshot of the collector's counters.
func (a *GlobalAllocator) ReadMemStats() GCStats {
	return GCStats{
		NumCollections:    a.counters.numCollections.Load(),
		BytesAllocated:    a.counters.bytesAllocated.Load(),
		ChunksAcquired:    a.counters.chunksAcquired.Load(),
		ChunksReleased:    a.counters.chunksReleased.Load(),
		BlocksUnavailable: a.counters.blocksUnavailable.Load(),
		BlocksRecyclable:  a.counters.blocksRecyclable.Load(),
		BlocksFree:        a.counters.blocksFree.Load(),
	}
}

// ReadMemStats reports statistics for the default process-wide collector.
func ReadMemStats() GCStats {
	return defaultCollector().ReadMemStats()
}
