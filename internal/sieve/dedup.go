package sieve

import (
	"context"
	"time"

	"github.com/allegro/bigcache/v3"
)

// dedupCache is a bounded, TTL-based best-effort guard against resubmitting
// the same share twice when a CHECK job races a preemption (the controller
// documents preemption as advisory; a stale CHECK may still complete and
// report). It is not a correctness requirement — the external submission
// layer must already tolerate duplicates — just noise reduction.
type dedupCache struct {
	cache *bigcache.BigCache
}

func newDedupCache(ttl time.Duration) (*dedupCache, error) {
	cfg := bigcache.DefaultConfig(ttl)
	cfg.Shards = 64
	cfg.MaxEntriesInWindow = 1 << 16
	c, err := bigcache.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	return &dedupCache{cache: c}, nil
}

// seen reports whether offsetBytes was already submitted within the TTL
// window, recording it if not.
func (d *dedupCache) seen(offsetBytes [32]byte) bool {
	key := string(offsetBytes[:])
	if _, err := d.cache.Get(key); err == nil {
		return true
	}
	_ = d.cache.Set(key, nil)
	return false
}
