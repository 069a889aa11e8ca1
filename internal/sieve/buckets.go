package sieve

import (
	"sync"

	apperrors "github.com/rieriver/sextsieve/internal/errors"
)

// bucketStore holds precomputed hit positions for once-only primes: primes
// large enough that each of their six tuple offsets strikes at most one
// sieve window across the entire maxIncrements horizon. hits[seg] is a
// flat, preallocated array of up to entriesPerSegment local (intra-window)
// positions; counts[seg] is the live fill. Deposits are batched by the
// caller (see runMod's stack in mod.go) and flushed here under a single lock,
// matching the original's bucket_lock discipline.
type bucketStore struct {
	mu                sync.Mutex
	hits              [][]uint32
	counts            []uint32
	entriesPerSegment uint32
}

func newBucketStore(entriesPerSegment uint32) *bucketStore {
	hits := make([][]uint32, maxIter)
	for i := range hits {
		hits[i] = make([]uint32, entriesPerSegment)
	}
	return &bucketStore{
		hits:              hits,
		counts:            make([]uint32, maxIter),
		entriesPerSegment: entriesPerSegment,
	}
}

// resetAll zeroes every segment's live fill count at the start of a block;
// the hit slots themselves are overwritten in place as they're refilled, so
// they don't need clearing.
func (s *bucketStore) resetAll() {
	s.mu.Lock()
	for i := range s.counts {
		s.counts[i] = 0
	}
	s.mu.Unlock()
}

// deposit records every global index in offsets (each in [0, maxIncrements))
// into its segment bucket, under the bucket lock. It returns a
// CapacityOverflow AppError the instant a segment's entriesPerSegment
// estimate is exceeded, identifying the segment, its fill, and the
// offending index.
func (s *bucketStore) deposit(offsets []uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, index := range offsets {
		segment := index >> sieveBits
		count := s.counts[segment]
		if count >= s.entriesPerSegment {
			return apperrors.NewError(apperrors.ErrorTypeCapacityOverflow, apperrors.SeverityFatal,
				"segment bucket exceeded entriesPerSegment estimate").
				WithContext("segment", segment).
				WithContext("fill", count).
				WithContext("index", index).
				WithContext("entriesPerSegment", s.entriesPerSegment)
		}
		s.hits[segment][count] = index - sieveSize*segment
		s.counts[segment] = count + 1
	}
	return nil
}

// countAt returns the live fill of segment seg, for the once-only merge.
func (s *bucketStore) countAt(seg uint32) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[seg]
}

// hitsAt returns the hit slice for segment seg, valid up to countAt(seg).
// Safe to read without the lock once MOD jobs for the block have all
// completed (ordering enforced by the controller awaiting workerDoneQueue).
func (s *bucketStore) hitsAt(seg uint32) []uint32 {
	return s.hits[seg]
}
