package facilitator

import (
	"context"
	"crypto/sha256"
	"sync"
	"time"

	insurance "github.com/x402-foundation/x402-insurance"
)

type settlementStatus int

const (
	settlementNew settlementStatus = iota
	settlementInFlight
	settlementCached
)

type settlementEntry struct {
	result    *insurance.SettleResponse
	expiresAt time.Time
	done      chan struct{}
}

// settlementCache deduplicates concurrent and repeated settle calls for
// the same signed transaction bytes. A duplicate arriving while the
// first attempt is in flight waits for that attempt instead of racing a
// second submission; a duplicate arriving after success replays the
// cached response until the TTL lapses.
type settlementCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[[32]byte]*settlementEntry
}

func settlementKey(rawTx []byte) [32]byte {
	return sha256.Sum256(rawTx)
}

func newSettlementCache(ttl time.Duration) *settlementCache {
	return &settlementCache{
		ttl:     ttl,
		entries: make(map[[32]byte]*settlementEntry),
	}
}

// checkAndMark returns the key's status and, for a new key, registers an
// in-flight entry owned by the caller. The returned channel is the
// entry's completion signal: the owner must resolve it with complete or
// fail, and waiters block on it in waitForResult.
func (c *settlementCache) checkAndMark(key [32]byte) (settlementStatus, *insurance.SettleResponse, chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if e, ok := c.entries[key]; ok {
		if e.result != nil {
			if now.Before(e.expiresAt) {
				return settlementCached, e.result, nil
			}
			delete(c.entries, key)
		} else {
			return settlementInFlight, nil, e.done
		}
	}

	e := &settlementEntry{done: make(chan struct{})}
	c.entries[key] = e
	return settlementNew, nil, e.done
}

func (c *settlementCache) complete(key [32]byte, result *insurance.SettleResponse, done chan struct{}) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && e.done == done {
		e.result = result
		e.expiresAt = time.Now().Add(c.ttl)
	}
	c.mu.Unlock()
	close(done)
}

// fail removes the in-flight entry so a later caller can retry.
func (c *settlementCache) fail(key [32]byte, done chan struct{}) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && e.done == done {
		delete(c.entries, key)
	}
	c.mu.Unlock()
	close(done)
}

// waitForResult blocks until the owning attempt resolves. A nil result
// with nil error means the attempt failed and the caller may retry.
func (c *settlementCache) waitForResult(ctx context.Context, key [32]byte, done chan struct{}) (*insurance.SettleResponse, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok && e.result != nil {
		return e.result, nil
	}
	return nil, nil
}
