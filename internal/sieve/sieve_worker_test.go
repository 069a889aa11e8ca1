package sieve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSillySortIndexesAscending(t *testing.T) {
	t.Parallel()

	indexes := [6]uint32{50, 10, 40, 20, 60, 30}
	sillySortIndexes(&indexes)
	assert.Equal(t, [6]uint32{10, 20, 30, 40, 50, 60}, indexes)
}

func TestSillySortIndexesAlreadySorted(t *testing.T) {
	t.Parallel()

	indexes := [6]uint32{1, 2, 3, 4, 5, 6}
	sillySortIndexes(&indexes)
	assert.Equal(t, [6]uint32{1, 2, 3, 4, 5, 6}, indexes)
}

func TestSillySortIndexesWithDuplicates(t *testing.T) {
	t.Parallel()

	indexes := [6]uint32{5, 5, 5, 5, 5, 5}
	sillySortIndexes(&indexes)
	assert.Equal(t, [6]uint32{5, 5, 5, 5, 5, 5}, indexes)
}

func TestMergeOnceOnlyMarksRecordedHits(t *testing.T) {
	t.Parallel()

	buckets := newBucketStore(8)
	err := buckets.deposit([]uint32{sieveSize*2 + 7, sieveSize*2 + 99})
	require.NoError(t, err)

	sieve := newBitmap()
	m := &Miner{buckets: buckets}
	m.mergeOnceOnly(sieve, 2)

	assert.NotZero(t, sieve[0]&(1<<7))
	assert.NotZero(t, sieve[12]&(1<<3)) // bit 99: byte 12, bit 3
}
