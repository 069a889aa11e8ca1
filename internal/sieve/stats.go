package sieve

import (
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/stat"
)

const iterHistorySize = 256

// Stats accumulates the write-only observability counters the engine
// exposes; the Prometheus exporter and the CLI stats table both read from a
// Snapshot rather than touching these fields directly.
type Stats struct {
	difficulty        atomic.Int64
	foundTuples       [7]atomic.Uint64
	sharesSubmitted   atomic.Uint64
	candidatesScanned atomic.Uint64
	blocksProcessed   atomic.Uint64
	currentHeight     atomic.Uint64

	iterMu        sync.Mutex
	iterHistory   [iterHistorySize]float64
	iterCount     int
	iterPos       int
	lastIteration atomic.Int64 // UnixNano of the last recordIteration call
}

func newStats() *Stats {
	return &Stats{}
}

func (s *Stats) setDifficulty(d int) { s.difficulty.Store(int64(d)) }

func (s *Stats) recordFoundTuple(k uint8) {
	if int(k) < len(s.foundTuples) {
		s.foundTuples[k].Add(1)
	}
}

func (s *Stats) recordShare()       { s.sharesSubmitted.Add(1) }
func (s *Stats) recordCandidate()   { s.candidatesScanned.Add(1) }
func (s *Stats) recordBlockDone()   { s.blocksProcessed.Add(1) }
func (s *Stats) setHeight(h uint64) { s.currentHeight.Store(h) }

// recordIteration feeds one sieve/check iteration's wall-clock duration
// into a bounded ring, used to derive the /healthz staleness threshold.
func (s *Stats) recordIteration(d time.Duration) {
	s.iterMu.Lock()
	s.iterHistory[s.iterPos] = d.Seconds()
	s.iterPos = (s.iterPos + 1) % iterHistorySize
	if s.iterCount < iterHistorySize {
		s.iterCount++
	}
	s.iterMu.Unlock()
	s.lastIteration.Store(time.Now().UnixNano())
}

// HeartbeatThreshold returns 2*mean+3*stddev of the recent iteration
// duration history, in seconds — a /healthz probe treats a miner stuck
// past this long on one iteration as unhealthy. Returns 0 until at least
// two samples have been recorded.
func (s *Stats) HeartbeatThreshold() float64 {
	s.iterMu.Lock()
	defer s.iterMu.Unlock()
	if s.iterCount < 2 {
		return 0
	}
	samples := s.iterHistory[:s.iterCount]
	mean, stddev := stat.MeanStdDev(samples, nil)
	return 2*mean + 3*stddev
}

// Snapshot is an immutable copy of Stats suitable for export or display.
type Snapshot struct {
	Difficulty        int64
	FoundTuples       [7]uint64
	SharesSubmitted   uint64
	CandidatesScanned uint64
	BlocksProcessed   uint64
	CurrentHeight     uint64
	Healthy           bool
}

// Snapshot copies the current counter values out, including a /healthz
// verdict: unhealthy if at least two iterations have run and the time since
// the last one exceeds HeartbeatThreshold — a miner stuck mid-iteration past
// its own recent-history envelope.
func (s *Stats) Snapshot() Snapshot {
	var snap Snapshot
	snap.Difficulty = s.difficulty.Load()
	for i := range s.foundTuples {
		snap.FoundTuples[i] = s.foundTuples[i].Load()
	}
	snap.SharesSubmitted = s.sharesSubmitted.Load()
	snap.CandidatesScanned = s.candidatesScanned.Load()
	snap.BlocksProcessed = s.blocksProcessed.Load()
	snap.CurrentHeight = s.currentHeight.Load()
	snap.Healthy = s.healthy()
	return snap
}

func (s *Stats) healthy() bool {
	threshold := s.HeartbeatThreshold()
	if threshold <= 0 {
		return true
	}
	last := s.lastIteration.Load()
	if last == 0 {
		return true
	}
	age := time.Since(time.Unix(0, last)).Seconds()
	return age <= threshold
}
