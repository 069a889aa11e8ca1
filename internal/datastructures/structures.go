package datastructures

import "sync/atomic"

// MemoryBarrier forces a full memory fence via a no-op atomic add. The
// controller calls this once per sieve iteration before reading the
// externally-published chain height, so a stale cached read can never
// survive past the next loop.
func MemoryBarrier() {
	var dummy int32
	atomic.AddInt32(&dummy, 0)
}
