package crypto

import (
	"crypto/sha256"
)

// SHA256Optimized provides double SHA256 hashing for block header targets.
type SHA256Optimized struct{}

// NewSHA256Optimized creates a new SHA256 hasher
func NewSHA256Optimized() *SHA256Optimized {
	return &SHA256Optimized{}
}

// HashDouble computes double SHA256 hash (SHA256(SHA256(data)))
func (s *SHA256Optimized) HashDouble(data []byte) [32]byte {
	first := sha256.Sum256(data)
	return sha256.Sum256(first[:])
}
