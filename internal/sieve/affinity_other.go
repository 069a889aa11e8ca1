//go:build !linux

package sieve

import "go.uber.org/zap"

// pinToCPU is a no-op outside Linux; CPU affinity has no portable API.
func pinToCPU(id int, logger *zap.Logger) {}
