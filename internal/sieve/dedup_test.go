package sieve

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedupCacheSeenMarksFirstOccurrence(t *testing.T) {
	t.Parallel()

	cache, err := newDedupCache(time.Minute)
	require.NoError(t, err)

	var offset [32]byte
	offset[0] = 1

	assert.False(t, cache.seen(offset), "first submission should not be flagged as a duplicate")
	assert.True(t, cache.seen(offset), "second submission of the same offset should be flagged")
}

func TestDedupCacheDistinguishesOffsets(t *testing.T) {
	t.Parallel()

	cache, err := newDedupCache(time.Minute)
	require.NoError(t, err)

	var a, b [32]byte
	a[0] = 1
	b[0] = 2

	assert.False(t, cache.seen(a))
	assert.False(t, cache.seen(b))
	assert.True(t, cache.seen(a))
	assert.True(t, cache.seen(b))
}
