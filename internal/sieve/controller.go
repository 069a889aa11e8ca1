package sieve

import (
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rieriver/sextsieve/internal/datastructures"
	apperrors "github.com/rieriver/sextsieve/internal/errors"
	"github.com/rieriver/sextsieve/internal/logging"

	"go.uber.org/zap"
)

// Miner is the aggregate owning the prime table, primorial, queues,
// bitmaps, and bucket arrays that the original source scattered across
// file-scope mutables. Exactly one goroutine acts as master per Miner —
// assigned once at construction time rather than raced for, since Run
// spawns every goroutine itself and already knows which one is which.
type Miner struct {
	logger     *zap.Logger
	errHandler *apperrors.Handler
	stats      *Stats
	submitter  Submitter
	heights    HeightObserver
	dedup      *dedupCache
	phases     PhaseRecorder

	table          *PrimeTable
	threads        int
	sieveWorkers   int
	tuplesRequired uint8

	verifyWorkQueue *Queue[Job]
	workerDoneQueue *Queue[struct{}]
	testDoneQueue   *Queue[struct{}]

	initOnce      sync.Once
	offsets       offsetArena
	buckets       *bucketStore
	masterBitmap  bitmap
	workerBitmaps []bitmap

	target, remainder *big.Int
	gwd               atomic.Value

	fatalCh chan error
}

// MinerOption configures optional collaborators on a Miner.
type MinerOption func(*Miner)

// WithDedup attaches a best-effort share dedup cache with the given TTL.
func WithDedup(ttl time.Duration) MinerOption {
	return func(m *Miner) {
		cache, err := newDedupCache(ttl)
		if err != nil {
			m.logger.Warn("dedup cache disabled", zap.Error(err))
			return
		}
		m.dedup = cache
	}
}

// WithPhaseRecorder attaches a sink for per-phase iteration timings, used
// to populate the iteration_duration_seconds histogram.
func WithPhaseRecorder(p PhaseRecorder) MinerOption {
	return func(m *Miner) { m.phases = p }
}

func (m *Miner) observePhase(phase string, d time.Duration) {
	if m.phases != nil {
		m.phases.ObservePhase(phase, d)
	}
}

// NewMiner builds a Miner ready to process blocks. threads is the total OS
// thread budget: one goroutine becomes master, the remaining threads-1 run
// the verifier loop. If threads < 2 the master also drains its own queues
// rather than requiring a dedicated verifier (see the scenario 6
// resolution).
func NewMiner(table *PrimeTable, threads int, tuplesRequired uint8, logger *zap.Logger,
	errHandler *apperrors.Handler, submitter Submitter, heights HeightObserver, opts ...MinerOption) *Miner {

	sieveWorkers := threads / 4
	if sieveWorkers < 1 {
		sieveWorkers = 1
	}
	if sieveWorkers > 8 {
		sieveWorkers = 8
	}

	m := &Miner{
		logger:          logger,
		errHandler:      errHandler,
		stats:           newStats(),
		submitter:       submitter,
		heights:         heights,
		table:           table,
		threads:         threads,
		sieveWorkers:    sieveWorkers,
		tuplesRequired:  tuplesRequired,
		verifyWorkQueue: NewQueue[Job](1024),
		workerDoneQueue: NewQueue[struct{}](3096),
		testDoneQueue:   NewQueue[struct{}](3096),
		fatalCh:         make(chan error, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Stats returns a snapshot of the current observability counters.
func (m *Miner) Stats() Snapshot {
	return m.stats.Snapshot()
}

func (m *Miner) ensureAllocated() {
	m.initOnce.Do(func() {
		m.masterBitmap = newBitmap()
		m.workerBitmaps = make([]bitmap, m.sieveWorkers)
		for i := range m.workerBitmaps {
			m.workerBitmaps[i] = newBitmap()
		}
		m.offsets = newOffsetArena(m.table.PrimeTestStoreOffsetsSize + 1024)
		m.buckets = newBucketStore(m.table.EntriesPerSegment)
	})
}

// reportFatal logs err and delivers it to Run's error channel, non-blocking
// so a second fatal report from a sibling goroutine never stalls.
func (m *Miner) reportFatal(err error) {
	m.errHandler.Handle(err)
	select {
	case m.fatalCh <- err:
	default:
	}
}

func (m *Miner) checkFatal() error {
	select {
	case err := <-m.fatalCh:
		return err
	default:
		return nil
	}
}

// Run spawns the verifier pool and processes blocks from source until it's
// exhausted or a fatal error occurs.
func (m *Miner) Run(source BlockSource) error {
	workers := m.threads - 1
	if workers < 1 {
		workers = 0
	}
	for i := 0; i < workers; i++ {
		go m.workerLoop(i)
	}

	for {
		block, ok := source.Next()
		if !ok {
			return nil
		}
		if err := m.processBlock(block); err != nil {
			return err
		}
	}
}

// workerLoop is the verifier goroutine's infinite pop-dispatch loop. It
// owns its scratch buffers exclusively, replacing the original's
// thread-local offset_stack and per-thread Fermat temporaries.
func (m *Miner) workerLoop(id int) {
	wlog := logging.WithWorker(m.logger, id)
	defer apperrors.SafeRecover(wlog, "sieve worker")

	pinToCPU(id, wlog)

	stack := make([]uint32, offsetStackSize)
	scratch := newCheckScratch()

	for {
		job := m.verifyWorkQueue.PopFront()
		switch job.Type {
		case JobMod:
			if err := m.runMod(job.Mod, stack); err != nil {
				m.reportFatal(err)
			}
			m.workerDoneQueue.PushBack(struct{}{})
		case JobSieve:
			m.runSieve(m.workerBitmaps[job.Sieve.SieveID], job.Sieve)
			m.workerDoneQueue.PushBack(struct{}{})
		case JobCheck:
			if err := m.runCheck(job.Check, scratch, m.gwd.Load()); err != nil {
				m.reportFatal(err)
			}
			m.testDoneQueue.PushBack(struct{}{})
		}
	}
}

// drainSelf lets a threads==1 master act as its own sole verifier for a
// single job, instead of requiring a dedicated worker goroutine. The job
// runs synchronously, so the caller already knows it's done the moment
// drainSelf returns; unlike workerLoop, it only posts a completion signal
// for CHECK jobs, since scanAndDispatchChecks' outstandingTests bookkeeping
// reads testDoneQueue regardless of thread count. MOD/SIEVE completions
// have no reader in single-thread mode, so posting to workerDoneQueue would
// only ever accumulate there.
func (m *Miner) drainSelf() {
	stack := make([]uint32, offsetStackSize)
	scratch := newCheckScratch()
	job := m.verifyWorkQueue.PopFront()
	switch job.Type {
	case JobMod:
		if err := m.runMod(job.Mod, stack); err != nil {
			m.reportFatal(err)
		}
	case JobSieve:
		m.runSieve(m.workerBitmaps[job.Sieve.SieveID], job.Sieve)
	case JobCheck:
		if err := m.runCheck(job.Check, scratch, m.gwd.Load()); err != nil {
			m.reportFatal(err)
		}
		m.testDoneQueue.PushBack(struct{}{})
	}
}

func (m *Miner) waitWorkerDone(n int) {
	if m.threads < 2 {
		for i := 0; i < n; i++ {
			m.drainSelf()
		}
		return
	}
	for i := 0; i < n; i++ {
		m.workerDoneQueue.PopFront()
	}
}

// processBlock runs one full per-block search: MOD seeding, then up to
// maxIter sieve/check iterations, preempting whenever block.Height no
// longer matches the externally observed current height.
func (m *Miner) processBlock(block Block) error {
	m.ensureAllocated()

	target, difficulty := ComputeTarget(block)
	remainder := ComputeRemainder(target, m.table.Primorial)
	m.target, m.remainder = target, remainder
	m.gwd.Store(block.GWD)
	m.stats.setDifficulty(difficulty)
	m.stats.setHeight(block.Height)
	m.buckets.resetAll()

	corrID := uuid.New()
	blockLog := logging.WithCorrelationID(logging.WithBlock(m.logger, block.Height, difficulty), corrID.String())
	blockLog.Info("processing block")

	modStart := time.Now()
	if err := m.seedModJobs(corrID); err != nil {
		return err
	}
	m.observePhase("mod", time.Since(modStart))
	if err := m.checkFatal(); err != nil {
		return err
	}

	outstandingTests := 0
	for loop := uint32(0); loop < maxIter; loop++ {
		iterStart := time.Now()
		datastructures.MemoryBarrier()
		if block.Height != m.heights.CurrentHeight() {
			break
		}

		sieveStart := time.Now()
		for i := range m.workerBitmaps {
			m.workerBitmaps[i].reset()
		}
		nWorkers := m.dispatchSieveJobs(corrID)

		m.masterBitmap.reset()
		m.sieveDense(m.masterBitmap)

		outstandingTests -= m.testDoneQueue.Clear()
		if m.threads >= 2 {
			m.waitWorkerDone(nWorkers)
		}
		if err := m.checkFatal(); err != nil {
			return err
		}

		orInto(m.masterBitmap, m.workerBitmaps)
		m.mergeOnceOnly(m.masterBitmap, loop)
		m.observePhase("sieve", time.Since(sieveStart))

		checkStart := time.Now()
		done, tests, err := m.scanAndDispatchChecks(block, corrID, loop, outstandingTests)
		outstandingTests = tests
		m.observePhase("check", time.Since(checkStart))
		m.stats.recordIteration(time.Since(iterStart))
		if err != nil {
			return err
		}
		if done {
			break
		}
	}

	// single-thread mode never reaches this loop with outstandingTests>0:
	// every CHECK dispatch is drained synchronously and its completion
	// claimed by the Clear() calls in scanAndDispatchChecks or above, so
	// there is nothing left in verifyWorkQueue to block draining.
	outstandingTests -= m.testDoneQueue.Clear()
	if m.threads >= 2 {
		for outstandingTests > 0 {
			m.testDoneQueue.PopFront()
			outstandingTests--
			if block.Height != m.heights.CurrentHeight() {
				outstandingTests -= m.verifyWorkQueue.Clear()
			}
		}
	}
	if err := m.checkFatal(); err != nil {
		return err
	}

	m.stats.recordBlockDone()
	return nil
}

// seedModJobs partitions [StartingPrimeIndex, NPrimes) into roughly 128
// MOD jobs — matching the original's fixed chunk-count partitioning — and
// waits for every dispatched job to complete.
func (m *Miner) seedModJobs(corrID uuid.UUID) error {
	incr := m.table.NPrimes / 128
	if incr == 0 {
		incr = 1
	}
	nWorkers := 0
	for base := m.table.StartingPrimeIndex; base < m.table.NPrimes; base += incr {
		lim := min(m.table.NPrimes, base+incr)
		job := Job{Type: JobMod, CorrelationID: corrID, Mod: ModWork{Start: base, End: lim}}
		if m.threads < 2 {
			m.verifyWorkQueue.PushBack(job)
			m.drainSelf()
		} else {
			m.verifyWorkQueue.PushBack(job)
		}
		nWorkers++
	}
	if m.threads >= 2 {
		m.waitWorkerDone(nWorkers)
	}
	return nil
}

// dispatchSieveJobs partitions the sparse partition into sieveWorkers
// SIEVE jobs, round-robining the destination worker bitmap, and pushes
// them to the front of the queue so they preempt any stale CHECK jobs
// still queued from the previous iteration.
func (m *Miner) dispatchSieveJobs(corrID uuid.UUID) int {
	nDense, nSparse := m.table.NDense, m.table.NSparse
	incr := nSparse/uint32(m.sieveWorkers) + 1

	nWorkers := 0
	whichSieve := 0
	for base := nDense; base < nDense+nSparse; base += incr {
		lim := min(nDense+nSparse, base+incr)
		lastChunk := false
		if lim+1000 > nDense+nSparse {
			lim = nDense + nSparse
			lastChunk = true
		}
		job := Job{Type: JobSieve, CorrelationID: corrID, Sieve: SieveWork{Start: base, End: lim, SieveID: whichSieve}}
		if m.threads < 2 {
			m.verifyWorkQueue.PushFront(job)
			m.drainSelf()
		} else {
			m.verifyWorkQueue.PushFront(job)
		}
		whichSieve = (whichSieve + 1) % m.sieveWorkers
		nWorkers++
		if lastChunk {
			break
		}
	}
	return nWorkers
}

// scanAndDispatchChecks scans the merged master bitmap for candidates,
// batching them into CHECK jobs of up to workIndexes entries, and reports
// whether the block preempted mid-scan.
func (m *Miner) scanAndDispatchChecks(block Block, corrID uuid.UUID, loop uint32, outstandingTests int) (preempted bool, newOutstanding int, err error) {
	check := Job{Type: JobCheck, CorrelationID: corrID}
	check.Check.Loop = loop

	scanErr := scanCandidates(m.masterBitmap, func(idx uint32) bool {
		m.stats.recordCandidate()
		check.Check.Indexes[check.Check.NIndexes] = idx
		check.Check.NIndexes++
		outstandingTests -= m.testDoneQueue.Clear()

		if check.Check.NIndexes == workIndexes {
			m.dispatchCheck(check)
			check.Check.NIndexes = 0
			outstandingTests++
		}
		outstandingTests -= m.testDoneQueue.Clear()

		if block.Height != m.heights.CurrentHeight() {
			outstandingTests -= m.verifyWorkQueue.Clear()
			preempted = true
			return true
		}
		return false
	})
	if scanErr != nil {
		return false, outstandingTests, scanErr
	}
	if preempted {
		return true, outstandingTests, nil
	}

	if check.Check.NIndexes > 0 {
		m.dispatchCheck(check)
		outstandingTests++
	}
	return false, outstandingTests, nil
}

func (m *Miner) dispatchCheck(job Job) {
	m.verifyWorkQueue.PushBack(job)
	if m.threads < 2 {
		m.drainSelf()
	}
}
