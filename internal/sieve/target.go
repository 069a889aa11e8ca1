package sieve

import (
	"math/big"

	"github.com/rieriver/sextsieve/internal/crypto"
)

var sha256d = crypto.NewSHA256Optimized()

// ComputeTarget derives T from a block header: double-SHA256 the 80-byte
// header, prefix the result with a single set bit above zeroesBeforeHashInPrime
// zero bits, then left-shift by the remaining trailing zero count implied by
// targetCompact. difficulty is T's bit length.
func ComputeTarget(block Block) (target *big.Int, difficulty int) {
	hash := sha256d.HashDouble(block.Header[:])

	target = big.NewInt(1)
	target.Lsh(target, zeroesBeforeHashInPrime)
	for i := 0; i < 256; i++ {
		target.Lsh(target, 1)
		if (hash[i/8]>>(uint(i)%8))&1 == 1 {
			target.Add(target, big.NewInt(1))
		}
	}

	trailingZeros := uint(block.TargetCompact) - 1 - zeroesBeforeHashInPrime - 256
	target.Lsh(target, trailingZeros)

	return target, target.BitLen()
}

// ComputeRemainder returns R = ((P - T mod P) mod P) + primorialOffset, so
// (T + R) is congruent to primorialOffset mod P and every candidate
// n = T + R + k*P is automatically coprime to every prime multiplied into P
// for all six tuple offsets. R lies in [primorialOffset, P + primorialOffset).
func ComputeRemainder(target, primorial *big.Int) *big.Int {
	r := new(big.Int).Mod(target, primorial)
	r.Sub(primorial, r)
	r.Mod(r, primorial)
	r.Add(r, big.NewInt(primorialOffset))
	return r
}
