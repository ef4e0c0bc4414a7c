// Package ratelimit guards the login path against brute-force PIN
// guessing. Two independent mechanisms apply to every attempt: a per-IP
// consecutive-failure backoff and a shared admission gate bounding the
// aggregate attempt rate.
package ratelimit

import (
	"sync"
	"time"

	"github.com/spaolacci/murmur3"

	"repairshop-api/internal/clock"
)

// FailureRecord tracks consecutive authentication failures for one client
// IP. Records live in memory only; a restart forgives everyone.
type FailureRecord struct {
	FailureCount  int
	LastFailureAt time.Time
}

// backoffFor returns the enforced wait after the given consecutive
// failure count. Fixed table, not a formula.
func backoffFor(count int) time.Duration {
	switch {
	case count <= 1:
		return 0
	case count == 2:
		return 5 * time.Second
	case count == 3:
		return 30 * time.Second
	default:
		return 300 * time.Second
	}
}

type trackerShard struct {
	mu      sync.RWMutex
	records map[string]*FailureRecord
}

// FailureTracker is a registry of per-IP failure records, sharded to keep
// lock contention bounded under concurrent logins. Construct one per
// service instance and inject it; there is no process-global tracker.
type FailureTracker struct {
	shards []*trackerShard
	clock  clock.Clock
}

// NewFailureTracker creates a tracker with the given shard count. Shard
// count is rounded up to at least one.
func NewFailureTracker(shards int, clk clock.Clock) *FailureTracker {
	if shards < 1 {
		shards = 1
	}
	t := &FailureTracker{
		shards: make([]*trackerShard, shards),
		clock:  clk,
	}
	for i := range t.shards {
		t.shards[i] = &trackerShard{records: make(map[string]*FailureRecord)}
	}
	return t
}

func (t *FailureTracker) shardFor(ip string) *trackerShard {
	h := murmur3.Sum64([]byte(ip))
	return t.shards[h%uint64(len(t.shards))]
}

// RecordFailure increments the consecutive-failure count for ip.
func (t *FailureTracker) RecordFailure(ip string) {
	shard := t.shardFor(ip)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	rec, ok := shard.records[ip]
	if !ok {
		rec = &FailureRecord{}
		shard.records[ip] = rec
	}
	rec.FailureCount++
	rec.LastFailureAt = t.clock.Now()
}

// RecordSuccess resets the failure count for ip.
func (t *FailureTracker) RecordSuccess(ip string) {
	shard := t.shardFor(ip)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	delete(shard.records, ip)
}

// FailureCount returns the current consecutive-failure count for ip.
func (t *FailureTracker) FailureCount(ip string) int {
	shard := t.shardFor(ip)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	if rec, ok := shard.records[ip]; ok {
		return rec.FailureCount
	}
	return 0
}

// Backoff reports whether ip is inside its enforced wait, and if so how
// many whole seconds remain (rounded up).
func (t *FailureTracker) Backoff(ip string) (remainingSeconds int, inBackoff bool) {
	shard := t.shardFor(ip)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	rec, ok := shard.records[ip]
	if !ok {
		return 0, false
	}

	wait := backoffFor(rec.FailureCount)
	if wait == 0 {
		return 0, false
	}

	elapsed := t.clock.Now().Sub(rec.LastFailureAt)
	if elapsed >= wait {
		return 0, false
	}

	return secondsCeil(wait - elapsed), true
}

// secondsCeil rounds a duration up to the next whole second.
func secondsCeil(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
