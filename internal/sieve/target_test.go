package sieve

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTargetBitLengthMatchesDifficulty(t *testing.T) {
	t.Parallel()

	var block Block
	block.TargetCompact = uint32(zeroesBeforeHashInPrime + 256 + 300 + 1)

	target, difficulty := ComputeTarget(block)
	assert.Equal(t, target.BitLen(), difficulty)
	// the leading bit forced by zeroesBeforeHashInPrime guarantees at least
	// that many bits below the top of the 256-bit hash window.
	assert.GreaterOrEqual(t, difficulty, 256)
}

func TestComputeTargetDeterministicForSameHeader(t *testing.T) {
	t.Parallel()

	var block Block
	block.TargetCompact = uint32(zeroesBeforeHashInPrime + 256 + 100 + 1)
	for i := range block.Header {
		block.Header[i] = byte(i)
	}

	t1, d1 := ComputeTarget(block)
	t2, d2 := ComputeTarget(block)
	assert.Equal(t, t1, t2)
	assert.Equal(t, d1, d2)
}

func TestComputeTargetVariesWithHeader(t *testing.T) {
	t.Parallel()

	var blockA, blockB Block
	blockA.TargetCompact = uint32(zeroesBeforeHashInPrime + 256 + 100 + 1)
	blockB.TargetCompact = blockA.TargetCompact
	blockB.Header[0] = 1

	targetA, _ := ComputeTarget(blockA)
	targetB, _ := ComputeTarget(blockB)
	assert.NotEqual(t, targetA, targetB)
}

// primorialNumber 8 keeps the primorial (2*3*...*19 = 9699690) comfortably
// larger than primorialOffset, matching how ComputeRemainder is actually
// used in production (sieve.primorial_number defaults to 40).
const remainderTestPrimorialNumber = 8

func TestComputeRemainderSatisfiesCongruence(t *testing.T) {
	t.Parallel()

	table, err := NewPrimeTable(10000, remainderTestPrimorialNumber)
	require.NoError(t, err)

	target := big.NewInt(123456789)
	remainder := ComputeRemainder(target, table.Primorial)

	// (T + R) mod P must land exactly on primorialOffset's own residue —
	// this is what makes every candidate n = T + R + k*P coprime to every
	// prime folded into P for all six tuple offsets.
	sum := new(big.Int).Add(target, remainder)
	mod := new(big.Int).Mod(sum, table.Primorial)
	wantMod := new(big.Int).Mod(big.NewInt(primorialOffset), table.Primorial)
	assert.Equal(t, wantMod, mod)

	assert.True(t, remainder.Sign() >= 0)
}

func TestComputeRemainderConsistentAcrossTargets(t *testing.T) {
	t.Parallel()

	table, err := NewPrimeTable(10000, remainderTestPrimorialNumber)
	require.NoError(t, err)

	wantMod := new(big.Int).Mod(big.NewInt(primorialOffset), table.Primorial)
	for _, v := range []int64{0, 1, 2309, 999999} {
		target := big.NewInt(v)
		remainder := ComputeRemainder(target, table.Primorial)
		sum := new(big.Int).Add(target, remainder)
		mod := new(big.Int).Mod(sum, table.Primorial)
		assert.Equal(t, wantMod, mod, "target=%d", v)
	}
}
