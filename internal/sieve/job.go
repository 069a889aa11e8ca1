package sieve

import "github.com/google/uuid"

// JobType discriminates the three classes of verifier work.
type JobType int

const (
	JobMod JobType = iota
	JobSieve
	JobCheck
)

// Job is a tagged variant replacing the union-typed job struct of the
// original source: exactly one of Mod/Sieve/Check is meaningful, selected
// by Type. CorrelationID ties a job back to the block that spawned it for
// log correlation.
type Job struct {
	Type          JobType
	CorrelationID uuid.UUID

	Mod   ModWork
	Sieve SieveWork
	Check CheckWork
}

// ModWork seeds offsets (or once-only bucket hits) for prime table indices
// in [Start, End).
type ModWork struct {
	Start, End uint32
}

// SieveWork marks composite positions for sparse primes in [Start, End)
// into worker bitmap SieveID.
type SieveWork struct {
	Start, End uint32
	SieveID    int
}

// CheckWork carries up to workIndexes candidate bitmap positions from
// sieve window Loop for Fermat verification.
type CheckWork struct {
	Loop     uint32
	Indexes  [workIndexes]uint32
	NIndexes int
}
