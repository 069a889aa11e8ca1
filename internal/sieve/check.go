package sieve

import (
	"math/big"

	apperrors "github.com/rieriver/sextsieve/internal/errors"
)

// checkScratch holds the big.Int temporaries a CHECK job needs across its
// whole indexes batch, so a worker reuses one set instead of allocating per
// candidate.
type checkScratch struct {
	n, r, b, base, term *big.Int
}

func newCheckScratch() *checkScratch {
	return &checkScratch{
		n:    new(big.Int),
		r:    new(big.Int),
		b:    big.NewInt(2),
		base: new(big.Int),
		term: new(big.Int),
	}
}

// runCheck Fermat-tests every candidate index in job against the current
// block's target, reporting each candidate reaching at least tuplesRequired
// consecutive prime hits via submit. It returns a non-nil AssertionFailure
// only if an offset fails the 256-bit fit check below, which the Fermat
// test itself can never trigger — a Fermat false positive on a full tuple
// is the documented TransientScanAnomaly case, which this implementation
// reports as a valid share regardless, per the error taxonomy's
// propagation policy.
func (m *Miner) runCheck(job CheckWork, scratch *checkScratch, gwd interface{}) error {
	for idx := 0; idx < job.NIndexes; idx++ {
		index := job.Indexes[idx]

		// n = T + R + P*(loop*sieveSize + idx)
		scratch.base.SetUint64(uint64(job.Loop)*sieveSize + uint64(index))
		scratch.term.Mul(m.table.Primorial, scratch.base)
		scratch.n.Add(scratch.term, m.remainder)
		scratch.n.Add(scratch.n, m.target)

		offset := new(big.Int).Sub(scratch.n, m.target)

		var nPrimesFound uint8
		if !fermatProbablePrime(scratch.n, scratch.b, scratch.r) {
			continue
		}
		nPrimesFound++

		for f := 1; f < 6; f++ {
			scratch.n.Add(scratch.n, big.NewInt(int64(primeTupleOffset[f])))
			if !fermatProbablePrime(scratch.n, scratch.b, scratch.r) {
				break
			}
			nPrimesFound++
			m.stats.recordFoundTuple(nPrimesFound)
		}

		if nPrimesFound < m.tuplesRequired {
			continue
		}

		offsetBytes, err := encodeOffset(offset)
		if err != nil {
			return m.errHandler.Handle(err)
		}

		if m.dedup != nil && m.dedup.seen(offsetBytes) {
			continue
		}
		m.stats.recordShare()
		m.submitter.Submit(gwd, offsetBytes, nPrimesFound)
	}
	return nil
}

// fermatProbablePrime reports whether b^(n-1) mod n == 1, using r as
// scratch for the result.
func fermatProbablePrime(n, b, r *big.Int) bool {
	nMinus1 := new(big.Int).Sub(n, big.NewInt(1))
	r.Exp(b, nMinus1, n)
	return r.Cmp(big.NewInt(1)) == 0
}

// encodeOffset serializes offset as little-endian bytes zero-padded to 32
// bytes, asserting it actually fits — the original source copies raw limbs
// without this check, which would silently corrupt a share if n-T ever
// reached 2^256; this implementation refuses instead.
func encodeOffset(offset *big.Int) ([32]byte, error) {
	var out [32]byte
	if offset.BitLen() > 256 {
		return out, apperrors.NewError(apperrors.ErrorTypeAssertion, apperrors.SeverityFatal,
			"candidate offset exceeds 256 bits").
			WithContext("bit_length", offset.BitLen())
	}
	be := offset.Bytes()
	for i, b := range be {
		out[len(be)-1-i] = b
	}
	return out, nil
}
