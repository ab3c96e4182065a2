// Package search runs the oracle over the keys of a single work unit on one
// machine, optionally spreading the unit across a bounded pool of goroutines.
package search

import (
	"context"
	"errors"
	"runtime"

	"github.com/dyluth/keyhunt/internal/logging"
	"github.com/dyluth/keyhunt/pkg/keyspace"
	"github.com/dyluth/keyhunt/pkg/oracle"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultPollInterval is the number of oracle calls a worker makes between
// two checks of the stop probe and the context.
const DefaultPollInterval = 64

// ErrStopped is returned when the stop probe asked the search to end before
// the unit was exhausted.
var ErrStopped = errors.New("search stopped")

// StopFunc is a non-blocking probe reporting whether the search should end.
// It is never invoked concurrently by the executor. A nil StopFunc never
// stops the search.
type StopFunc func() bool

// Match is a successful key with the text it decrypted to.
type Match struct {
	Key       uint64
	Plaintext []byte
}

// Executor searches work units.
type Executor struct {
	workers      int
	pollInterval int
	logger       *zap.Logger
}

// NewExecutor returns an executor with the given pool size and polling
// granularity. Zero values select runtime.NumCPU() and DefaultPollInterval.
func NewExecutor(workers, pollInterval int, logger *zap.Logger) *Executor {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Executor{
		workers:      workers,
		pollInterval: pollInterval,
		logger:       logging.OrNop(logger),
	}
}

// Workers returns the pool size.
func (e *Executor) Workers() int {
	return e.workers
}

// Search tries every key of unit in ascending order and returns the smallest
// matching key. It returns (nil, nil) when the unit holds no match,
// (nil, ErrStopped) when stop fired and (nil, ctx.Err()) on cancellation.
//
// With more than one worker, worker i starts at unit.Start+i and strides by
// the pool size. The result is still the smallest matching key of the unit.
func (e *Executor) Search(ctx context.Context, unit keyspace.WorkUnit, o oracle.Oracle, stop StopFunc) (*Match, error) {
	return e.SearchWithin(ctx, unit, o, stop, nil)
}

// SearchWithin is Search with a limit that may be lowered while the search
// runs. Keys above the limit are skipped; every key up to it is still tried
// unless stop fires. A nil limit never restricts the search.
func (e *Executor) SearchWithin(ctx context.Context, unit keyspace.WorkUnit, o oracle.Oracle, stop StopFunc, limit *Limit) (*Match, error) {
	if unit.Empty {
		return nil, nil
	}

	guard := newStopGuard(stop)
	slot := newLatch()
	if limit == nil {
		limit = NewLimit()
	}

	workers := uint64(e.workers)
	if n := unit.Len(); n != 0 && n < workers {
		workers = n
	}

	var err error
	if workers == 1 {
		err = e.scan(ctx, unit, unit.Start, 1, o, guard, slot, limit)
	} else {
		g, gctx := errgroup.WithContext(ctx)
		for i := uint64(0); i < workers; i++ {
			offset := i
			g.Go(func() error {
				return e.scan(gctx, unit, unit.Start+offset, workers, o, guard, slot, limit)
			})
		}
		err = g.Wait()
	}

	if m := slot.result(); m != nil {
		return m, nil
	}
	if err != nil {
		return nil, err
	}
	if guard.stopped() {
		return nil, ErrStopped
	}
	return nil, nil
}

// scan tries keys start, start+stride, ... up to unit.End.
func (e *Executor) scan(ctx context.Context, unit keyspace.WorkUnit, start, stride uint64, o oracle.Oracle, guard *stopGuard, slot *latch, limit *Limit) error {
	calls := 0
	for key := start; ; {
		if calls%e.pollInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			if guard.check() {
				return nil
			}
		}
		calls++

		// A smaller key already won; nothing from here on can beat it.
		if key > slot.ceiling() || key > limit.Load() {
			return nil
		}

		if plaintext, ok := o.TryKey(key); ok {
			if slot.offer(key, plaintext) {
				e.logger.Debug("candidate_latched",
					zap.Uint64("unit_seq", unit.Seq),
					zap.Uint64("key", key))
			}
			return nil
		}

		if unit.End-key < stride {
			return nil
		}
		key += stride
	}
}
