package sieve

import "time"

// Block is the opaque per-candidate-block work unit the engine searches
// against. Header is the 80-byte block header prefix hashed to derive the
// target; GWD is forwarded untouched to Submitter.Submit.
type Block struct {
	Header        [80]byte
	TargetCompact uint32
	Height        uint64
	GWD           interface{}
}

// BlockSource is the blocking source of new work. Next returns when a new
// Block supersedes whatever is currently being searched; a false second
// result means the source is exhausted, which ends Miner.Run.
type BlockSource interface {
	Next() (Block, bool)
}

// Submitter is the share-submission sink. OffsetBytes is little-endian
// n-T, zero-padded to 32 bytes; KFound is the number of the six tuple
// offsets that passed the Fermat test.
type Submitter interface {
	Submit(gwd interface{}, offsetBytes [32]byte, kFound uint8)
}

// HeightObserver exposes the externally-tracked current chain height used
// for preemption. The engine never advances height itself.
type HeightObserver interface {
	CurrentHeight() uint64
}

// PhaseRecorder receives the wall-clock duration of one dispatch-and-wait
// phase per iteration (mod, sieve, check), for a histogram export. The
// engine itself never imports a metrics library — it only knows this
// interface.
type PhaseRecorder interface {
	ObservePhase(phase string, d time.Duration)
}
