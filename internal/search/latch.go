package search

import (
	"bytes"
	"math"
	"sync"
	"sync/atomic"
)

// latch is the single result slot shared by the workers of one Search call.
//
// The mutex is taken only when a worker has a candidate match. The first
// offer fills the slot; a later offer wins only with a strictly smaller key,
// so the slot always ends up holding the smallest match. Workers read the
// latched key lock-free through ceiling and stop once they are past it.
type latch struct {
	mu    sync.Mutex
	match *Match
	top   atomic.Uint64
}

func newLatch() *latch {
	l := &latch{}
	l.top.Store(math.MaxUint64)
	return l
}

// offer records a candidate and reports whether it was accepted.
func (l *latch) offer(key uint64, plaintext []byte) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.match != nil && key >= l.match.Key {
		return false
	}
	l.match = &Match{Key: key, Plaintext: bytes.Clone(plaintext)}
	l.top.Store(key)
	return true
}

// ceiling returns the latched key, or MaxUint64 while the slot is empty.
// Keys above it can never be accepted.
func (l *latch) ceiling() uint64 {
	return l.top.Load()
}

func (l *latch) result() *Match {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.match
}

// stopGuard serialises calls to a StopFunc and latches a positive answer so
// later checks are free.
type stopGuard struct {
	probe StopFunc
	mu    sync.Mutex
	fired atomic.Bool
}

func newStopGuard(probe StopFunc) *stopGuard {
	return &stopGuard{probe: probe}
}

// check reports whether the search should stop. If another worker is
// currently probing, check returns the last known answer instead of waiting.
func (g *stopGuard) check() bool {
	if g.fired.Load() {
		return true
	}
	if g.probe == nil {
		return false
	}
	if !g.mu.TryLock() {
		return g.fired.Load()
	}
	defer g.mu.Unlock()

	if g.probe() {
		g.fired.Store(true)
	}
	return g.fired.Load()
}

func (g *stopGuard) stopped() bool {
	return g.fired.Load()
}

// Limit is an upper key bound shared by the workers of one search. It only
// ever decreases.
type Limit struct {
	v atomic.Uint64
}

// NewLimit returns a limit that admits every key.
func NewLimit() *Limit {
	l := &Limit{}
	l.v.Store(math.MaxUint64)
	return l
}

// Lower moves the limit down to key. A higher key is ignored.
func (l *Limit) Lower(key uint64) {
	for {
		cur := l.v.Load()
		if key >= cur || l.v.CompareAndSwap(cur, key) {
			return
		}
	}
}

// Load returns the current limit.
func (l *Limit) Load() uint64 {
	return l.v.Load()
}
