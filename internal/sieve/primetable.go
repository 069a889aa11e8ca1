package sieve

import (
	"math/big"

	apperrors "github.com/rieriver/sextsieve/internal/errors"
)

// PrimeTable is the process-global, build-once table of primes below
// sieveMax together with the primorial of the first primorialNumber of
// them and the modular inverse of that primorial for every later prime.
// It never mutates after New returns.
type PrimeTable struct {
	Primes  []uint32
	Inverts []uint64 // Inverts[i] is P^-1 mod Primes[i], valid for i >= PrimorialNumber.
	NPrimes uint32

	Primorial *big.Int

	// PrimorialNumber is the count of leading primes multiplied into
	// Primorial; sieving of dense/sparse/once-only primes starts at this
	// index.
	PrimorialNumber uint32

	// StartingPrimeIndex == PrimorialNumber; kept as a distinct field to
	// mirror the controller's own naming of the partition boundary.
	StartingPrimeIndex uint32

	NDense, NSparse uint32

	// PrimeTestStoreOffsetsSize is the count of primes with p < maxIncrements
	// across indices [5, NPrimes); it sizes the offsets arena.
	PrimeTestStoreOffsetsSize uint32

	// EntriesPerSegment bounds how many once-only hits a single segment
	// bucket may hold before CapacityOverflow fires.
	EntriesPerSegment uint32
}

// NewPrimeTable builds the prime table and primorial for a given sieveMax
// and primorialNumber. It returns an *apperrors.AppError of type
// ErrorTypeInit if sieveMax is too small to contain primorialNumber primes,
// or if primorialNumber is below the minimum this implementation supports.
func NewPrimeTable(sieveMax uint64, primorialNumber uint32) (*PrimeTable, error) {
	if primorialNumber < minPrimorialNumber {
		return nil, apperrors.NewError(apperrors.ErrorTypeInit, apperrors.SeverityFatal,
			"primorialNumber below minimum supported value").
			WithContext("primorialNumber", primorialNumber).
			WithContext("minimum", minPrimorialNumber)
	}

	primes := sieveEratosthenes(sieveMax)
	nPrimes := uint32(len(primes))
	if nPrimes <= primorialNumber {
		return nil, apperrors.NewError(apperrors.ErrorTypeInit, apperrors.SeverityFatal,
			"sieveMax too small to contain primorialNumber primes").
			WithContext("sieveMax", sieveMax).
			WithContext("primorialNumber", primorialNumber).
			WithContext("nPrimes", nPrimes)
	}

	primorial := big.NewInt(int64(primes[0]))
	for i := uint32(1); i < primorialNumber; i++ {
		primorial.Mul(primorial, big.NewInt(int64(primes[i])))
	}

	inverts := make([]uint64, nPrimes)
	p := new(big.Int)
	inv := new(big.Int)
	for i := primorialNumber; i < nPrimes; i++ {
		p.SetUint64(uint64(primes[i]))
		if inv.ModInverse(primorial, p) == nil {
			return nil, apperrors.NewError(apperrors.ErrorTypeInit, apperrors.SeverityFatal,
				"primorial has no modular inverse mod prime").
				WithContext("index", i).
				WithContext("prime", primes[i])
		}
		inverts[i] = inv.Uint64()
	}

	var highFloats float64
	var primeTestStoreOffsetsSize uint32
	for i := uint32(5); i < nPrimes; i++ {
		p := uint64(primes[i])
		if p < maxIncrements {
			primeTestStoreOffsetsSize++
		}
		highFloats += (6.0 * float64(maxIncrements)) / float64(p)
	}

	var entriesPerSegment uint32
	highSegmentEntries := uint64(highFloats) // ceil handled below
	if highFloats > float64(highSegmentEntries) {
		highSegmentEntries++
	}
	if highSegmentEntries == 0 {
		entriesPerSegment = 1
	} else {
		entriesPerSegment = uint32(highSegmentEntries/maxIter) + 4
		entriesPerSegment = entriesPerSegment + (entriesPerSegment >> 3)
	}

	var nDense, nSparse uint32
	for i := primorialNumber; i < nPrimes; i++ {
		p := primes[i]
		if p < denseLimit {
			nDense++
		} else if p < maxIncrements {
			nSparse++
		}
	}

	return &PrimeTable{
		Primes:                    primes,
		Inverts:                   inverts,
		NPrimes:                   nPrimes,
		Primorial:                 primorial,
		PrimorialNumber:           primorialNumber,
		StartingPrimeIndex:        primorialNumber,
		NDense:                    nDense,
		NSparse:                   nSparse,
		PrimeTestStoreOffsetsSize: primeTestStoreOffsetsSize,
		EntriesPerSegment:         entriesPerSegment,
	}, nil
}

// sieveEratosthenes returns every prime below max using a byte-packed
// sieve of Eratosthenes.
func sieveEratosthenes(max uint64) []uint32 {
	if max < 3 {
		return nil
	}
	composite := make([]byte, (max+7)/8)
	isComposite := func(n uint64) bool { return composite[n>>3]&(1<<(n&7)) != 0 }
	setComposite := func(n uint64) { composite[n>>3] |= 1 << (n & 7) }

	for f := uint64(2); f*f < max; f++ {
		if isComposite(f) {
			continue
		}
		for c := f * f; c < max; c += f {
			setComposite(c)
		}
	}

	primes := make([]uint32, 0, int(float64(max)/10))
	for n := uint64(2); n < max; n++ {
		if !isComposite(n) {
			primes = append(primes, uint32(n))
		}
	}
	return primes
}
