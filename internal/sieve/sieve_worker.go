package sieve

// runSieve marks composite positions for sparse primes in [job.Start, job.End)
// (indices counted from startingPrimeIndex, so the sparse partition begins
// at NDense) into sieve, using the pending-ring prefetch discipline,
// and re-establishes each offset for the following window.
func (m *Miner) runSieve(sieve bitmap, job SieveWork) {
	var ring pendingRing

	for i := job.Start; i < job.End; i++ {
		pno := i + m.table.StartingPrimeIndex
		prime := m.table.Primes[pno]
		for f := 0; f < 6; f++ {
			for m.offsets[pno][f] < sieveSize {
				ring.add(sieve, m.offsets[pno][f])
				m.offsets[pno][f] += prime
			}
			m.offsets[pno][f] -= sieveSize
		}
	}

	ring.flush(sieve)
}

// sieveDense sieves every dense prime inline on the master, sorting each
// prime's six current offsets ascending first for cache locality of the
// marking walk that follows (a 6-element selection sort, matching the
// original's silly_sort_indexes).
func (m *Miner) sieveDense(sieve bitmap) {
	for i := uint32(0); i < m.table.NDense; i++ {
		pno := i + m.table.StartingPrimeIndex
		sillySortIndexes(&m.offsets[pno])
		prime := m.table.Primes[pno]
		for f := 0; f < 6; f++ {
			for m.offsets[pno][f] < sieveSize {
				sieve.set(m.offsets[pno][f])
				m.offsets[pno][f] += prime
			}
			m.offsets[pno][f] -= sieveSize
		}
	}
}

// sillySortIndexes sorts a 6-element offset tuple ascending in place with a
// plain selection sort; six elements never justifies anything fancier.
func sillySortIndexes(indexes *[6]uint32) {
	for i := 0; i < 5; i++ {
		for j := i + 1; j < 6; j++ {
			if indexes[j] < indexes[i] {
				indexes[i], indexes[j] = indexes[j], indexes[i]
			}
		}
	}
}

// mergeOnceOnly marks every once-only hit recorded for segment loop into
// sieve, via the same pending-ring discipline used for sparse primes.
func (m *Miner) mergeOnceOnly(sieve bitmap, loop uint32) {
	var ring pendingRing
	count := m.buckets.countAt(loop)
	hits := m.buckets.hitsAt(loop)
	for i := uint32(0); i < count; i++ {
		ring.add(sieve, hits[i])
	}
	ring.flush(sieve)
}
