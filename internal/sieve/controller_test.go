package sieve

import (
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/rieriver/sextsieve/internal/errors"
)

type fakeSubmitter struct {
	submitted int
}

func (f *fakeSubmitter) Submit(gwd interface{}, offsetBytes [32]byte, kFound uint8) {
	f.submitted++
}

type fakeHeights struct {
	height uint64
}

func (f *fakeHeights) CurrentHeight() uint64 { return f.height }

// 20000 keeps the sparse partition (primes in [16384, sieveMax)) small
// enough that dispatchSieveJobs' sieve walk stays fast in a unit test while
// still exercising both the dense and sparse code paths.
const testSieveMax = 20000

func newTestMiner(t *testing.T, threads int) (*Miner, *PrimeTable) {
	t.Helper()
	table, err := NewPrimeTable(testSieveMax, remainderTestPrimorialNumber)
	require.NoError(t, err)

	m := NewMiner(table, threads, 6, zap.NewNop(), apperrors.NewHandler(zap.NewNop()), &fakeSubmitter{}, &fakeHeights{})
	m.ensureAllocated()
	m.target = big.NewInt(123456789)
	m.remainder = ComputeRemainder(m.target, table.Primorial)
	return m, table
}

func TestSeedModJobsPopulatesOffsetsForLivePrimes(t *testing.T) {
	t.Parallel()

	m, table := newTestMiner(t, 1)
	err := m.seedModJobs(uuid.New())
	require.NoError(t, err)
	require.NoError(t, m.checkFatal())

	// every live (non-once-only) prime index must get all six offsets
	// populated in [0, prime).
	for i := table.StartingPrimeIndex; i < table.NPrimes; i++ {
		prime := table.Primes[i]
		if uint64(prime) >= maxIncrements {
			continue
		}
		for f := 0; f < 6; f++ {
			assert.Less(t, m.offsets[i][f], prime, "prime index %d offset %d out of range", i, f)
		}
	}
}

func TestSeedModJobsPartitionsAcrossChunks(t *testing.T) {
	t.Parallel()

	m, table := newTestMiner(t, 1)
	incr := table.NPrimes / 128
	if incr == 0 {
		incr = 1
	}
	expectedJobs := 0
	for base := table.StartingPrimeIndex; base < table.NPrimes; base += incr {
		expectedJobs++
	}
	assert.Greater(t, expectedJobs, 0)

	err := m.seedModJobs(uuid.New())
	require.NoError(t, err)
}

func TestDispatchSieveJobsRoundRobinsWorkerBitmaps(t *testing.T) {
	t.Parallel()

	m, _ := newTestMiner(t, 4)
	// seed offsets first, since dispatchSieveJobs/runSieve reads m.offsets.
	require.NoError(t, m.seedModJobs(uuid.New()))

	nWorkers := m.dispatchSieveJobs(uuid.New())
	assert.Greater(t, nWorkers, 0)

	// no worker pool is running in this unit test, so drain the jobs
	// directly instead of leaving them queued.
	for m.verifyWorkQueue.Len() > 0 {
		job := m.verifyWorkQueue.PopFront()
		if job.Type == JobSieve {
			m.runSieve(m.workerBitmaps[job.Sieve.SieveID], job.Sieve)
		}
	}
}

func TestWaitWorkerDoneSingleThreadDrainsSelf(t *testing.T) {
	t.Parallel()

	m, table := newTestMiner(t, 1)
	m.verifyWorkQueue.PushBack(Job{Type: JobMod, Mod: ModWork{Start: table.StartingPrimeIndex, End: table.StartingPrimeIndex + 1}})
	m.waitWorkerDone(1)
	require.NoError(t, m.checkFatal())
	assert.Equal(t, 0, m.workerDoneQueue.Clear(), "single-thread MOD drain has no reader for workerDoneQueue and must not post to it")
}

// dispatchCheck's single-thread path runs the CHECK job synchronously via
// drainSelf, which must signal completion through testDoneQueue — the
// queue scanAndDispatchChecks' outstandingTests bookkeeping reads — not
// workerDoneQueue, which nothing ever drains in single-thread mode.
func TestDispatchCheckSingleThreadSignalsTestDoneQueue(t *testing.T) {
	t.Parallel()

	m, _ := newTestMiner(t, 1)
	job := Job{Type: JobCheck}
	job.Check.NIndexes = 1
	job.Check.Indexes[0] = 0

	m.dispatchCheck(job)

	assert.Equal(t, 1, m.testDoneQueue.Clear())
	assert.Equal(t, 0, m.workerDoneQueue.Clear())
	require.NoError(t, m.checkFatal())
}

// With threads < 2, dispatchSieveJobs already drains every SIEVE job inline
// via drainSelf, so processBlock must not also wait on workerDoneQueue for
// the sieve phase — there is no other goroutine left to post to it.
//
// testSieveMax is small enough that the sieve filters out only a fraction
// of positions per window, so this run dispatches real CHECK batches (and
// not just MOD/SIEVE jobs) — exercising the path where a single-thread
// CHECK completion used to signal workerDoneQueue instead of testDoneQueue
// and leave outstandingTests permanently above zero.
func TestProcessBlockSingleThreadDoesNotDeadlock(t *testing.T) {
	t.Parallel()

	m, _ := newTestMiner(t, 1)
	block := Block{Height: 0, TargetCompact: uint32(zeroesBeforeHashInPrime + 256 + 100 + 1)}

	done := make(chan error, 1)
	go func() { done <- m.processBlock(block) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("processBlock deadlocked with threads=1")
	}

	assert.Greater(t, m.Stats().CandidatesScanned, uint64(0),
		"expected this block to scan sieve candidates and dispatch CHECK batches")
}

// Bits set while sieving an earlier window must not survive into the next
// window's worker bitmaps, or stale composites get OR'd into masterBitmap
// and mask genuine candidates for every iteration after the first.
func TestProcessBlockResetsWorkerBitmapsEachIteration(t *testing.T) {
	t.Parallel()

	m, _ := newTestMiner(t, 1)
	m.ensureAllocated()
	for i := range m.workerBitmaps {
		for j := range m.workerBitmaps[i] {
			m.workerBitmaps[i][j] = 0xFF
		}
	}

	block := Block{Height: 0, TargetCompact: uint32(zeroesBeforeHashInPrime + 256 + 100 + 1)}
	require.NoError(t, m.processBlock(block))

	// the final iteration's reset-then-sieve pass must have cleared the
	// all-ones poison before OR-merging the real sieve output back in;
	// masterBitmap holding every bit set would mean the poison survived.
	allOnes := true
	for _, w := range m.masterBitmap {
		if w != 0xFF {
			allOnes = false
			break
		}
	}
	assert.False(t, allOnes, "masterBitmap still all-ones, worker bitmap reset did not take effect")
}
