package sieve

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatsSnapshotReflectsRecordedCounters(t *testing.T) {
	t.Parallel()

	s := newStats()
	s.setDifficulty(1234)
	s.setHeight(500)
	s.recordFoundTuple(4)
	s.recordFoundTuple(4)
	s.recordShare()
	s.recordCandidate()
	s.recordCandidate()
	s.recordCandidate()
	s.recordBlockDone()

	snap := s.Snapshot()
	assert.Equal(t, int64(1234), snap.Difficulty)
	assert.Equal(t, uint64(500), snap.CurrentHeight)
	assert.Equal(t, uint64(2), snap.FoundTuples[4])
	assert.Equal(t, uint64(1), snap.SharesSubmitted)
	assert.Equal(t, uint64(3), snap.CandidatesScanned)
	assert.Equal(t, uint64(1), snap.BlocksProcessed)
}

func TestStatsRecordFoundTupleIgnoresOutOfRangeK(t *testing.T) {
	t.Parallel()

	s := newStats()
	s.recordFoundTuple(6)
	s.recordFoundTuple(200) // out of bounds for the [7]atomic.Uint64 array; must not panic.

	snap := s.Snapshot()
	assert.Equal(t, uint64(1), snap.FoundTuples[6])
}

func TestHeartbeatThresholdZeroBelowTwoSamples(t *testing.T) {
	t.Parallel()

	s := newStats()
	assert.Zero(t, s.HeartbeatThreshold())

	s.recordIteration(10 * time.Millisecond)
	assert.Zero(t, s.HeartbeatThreshold())
}

func TestHeartbeatThresholdPositiveAfterTwoSamples(t *testing.T) {
	t.Parallel()

	s := newStats()
	s.recordIteration(10 * time.Millisecond)
	s.recordIteration(20 * time.Millisecond)

	assert.Greater(t, s.HeartbeatThreshold(), 0.0)
}

func TestHeartbeatThresholdWrapsRingBuffer(t *testing.T) {
	t.Parallel()

	s := newStats()
	for i := 0; i < iterHistorySize+10; i++ {
		s.recordIteration(time.Duration(i) * time.Microsecond)
	}

	assert.Greater(t, s.HeartbeatThreshold(), 0.0)
}

func TestSnapshotHealthyBeforeAnyIteration(t *testing.T) {
	t.Parallel()

	s := newStats()
	assert.True(t, s.Snapshot().Healthy)
}

func TestSnapshotUnhealthyPastThreshold(t *testing.T) {
	t.Parallel()

	s := newStats()
	s.recordIteration(time.Microsecond)
	s.recordIteration(time.Microsecond)
	s.lastIteration.Store(time.Now().Add(-time.Hour).UnixNano())

	assert.False(t, s.Snapshot().Healthy)
}
