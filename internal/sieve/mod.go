package sieve

import "math/big"

// runMod computes, for every prime index in [job.Start, job.End), the
// intra-window position of the first hit of each of the six tuple offsets,
// and either writes it into the shared offsets arena (live primes) or
// stages it for the once-only bucket store. stack is the calling worker's
// reusable scratch slice, replacing the original's thread-local
// offset_stack; it is flushed into the bucket store whenever it fills, and
// once more at the end of the range.
func (m *Miner) runMod(job ModWork, stack []uint32) error {
	target := new(big.Int).Add(m.target, m.remainder)

	p := new(big.Int)
	n := 0

	for i := job.Start; i < job.End; i++ {
		prime := m.table.Primes[i]
		remainder := uint32(new(big.Int).Mod(target, p.SetUint64(uint64(prime))).Uint64())
		isOnceOnly := uint64(prime) >= maxIncrements
		invert := m.table.Inverts[i]

		for f := 0; f < 6; f++ {
			remainder += primeTupleOffset[f]
			if remainder > prime {
				remainder -= prime
			}
			pa := uint64(prime) - uint64(remainder)
			index := uint32((pa * invert) % uint64(prime))

			if !isOnceOnly {
				m.offsets[i][f] = index
				continue
			}
			if uint64(index) < maxIncrements {
				stack[n] = index
				n++
				if n >= offsetStackSize {
					if err := m.buckets.deposit(stack[:n]); err != nil {
						return err
					}
					n = 0
				}
			}
		}
	}

	if n > 0 {
		if err := m.buckets.deposit(stack[:n]); err != nil {
			return err
		}
	}
	return nil
}
