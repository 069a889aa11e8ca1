package sieve

// Constants mirror the fixed tuning parameters of the sextuplet search:
// a 2^24-bit sieve window, a 2^29 increment horizon beyond which a prime's
// six tuple offsets strike at most once, and the {0,4,6,10,12,16} pattern
// that defines a prime sextuplet.
const (
	sieveBits  = 24
	sieveSize  = 1 << sieveBits
	sieveWords = sieveSize / 64

	maxIncrements = 1 << 29
	maxIter       = maxIncrements / sieveSize

	denseLimit = 16384

	primorialOffset = 16057

	zeroesBeforeHashInPrime = 8

	workIndexes     = 64
	pendingSize     = 16
	offsetStackSize = 16384

	// minPrimorialNumber is the smallest primorialNumber this implementation
	// accepts. The five smallest primes have no modular inverse entry
	// (index < 5 is skipped when the invert table is built), so the
	// primorial must absorb at least that many primes.
	minPrimorialNumber = 5
)

// primeTupleOffset is the cumulative sextuplet pattern {0,4,6,10,12,16}
// expressed as successive deltas.
var primeTupleOffset = [6]uint32{0, 4, 2, 4, 2, 4}
