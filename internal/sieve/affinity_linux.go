//go:build linux

package sieve

import (
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// pinToCPU locks the calling goroutine to its OS thread and pins that
// thread to CPU id%NumCPU, matching the teacher's hardware-affinity intent
// elsewhere in the codebase. A failure is logged at Warn and otherwise
// ignored — affinity is a cache-locality optimization, never a correctness
// requirement.
func pinToCPU(id int, logger *zap.Logger) {
	runtime.LockOSThread()

	n := runtime.NumCPU()
	if n == 0 {
		return
	}

	var set unix.CPUSet
	set.Zero()
	set.Set(id % n)

	if err := unix.SchedSetaffinity(0, &set); err != nil {
		logger.Warn("failed to set worker CPU affinity", zap.Int("worker_id", id), zap.Error(err))
	}
}
