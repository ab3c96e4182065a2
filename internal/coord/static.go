package coord

import (
	"context"
	"errors"
	"fmt"

	"github.com/dyluth/keyhunt/internal/search"
	"github.com/dyluth/keyhunt/pkg/blackboard"
	"github.com/dyluth/keyhunt/pkg/keyspace"
	"go.uber.org/zap"
)

// runStatic searches the participant's own range, then exchanges final
// reports until all N are known. Reports that arrive while searching may
// shorten or end the local scan.
func (p *Participant) runStatic(ctx context.Context) (Result, error) {
	self := p.t.ID()
	n := p.t.Size()

	units, err := keyspace.Partition(p.params.Keyspace, n)
	if err != nil {
		return Result{}, err
	}
	unit := units[self]
	tracker := NewTracker(self, units, p.params.TieBreak)
	limit := search.NewLimit()

	// probe runs on one executor worker at a time and never blocks.
	var probeErr error
	probe := func() bool {
		if probeErr != nil {
			return true
		}
		for {
			msg, ok, err := p.t.TryRecv(ctx)
			if err != nil {
				probeErr = err
				return true
			}
			if !ok {
				break
			}
			if err := tracker.Record(msg); err != nil {
				probeErr = err
				return true
			}
		}
		if bound, ok := tracker.Bound(); ok && p.params.TieBreak == blackboard.TieBreakOrdered {
			limit.Lower(bound)
		}
		return tracker.ShouldStop()
	}

	p.logger.Debug("range_assigned", zap.Stringer("unit", unit))
	match, err := p.exec.SearchWithin(ctx, unit, p.oracle, probe, limit)
	if probeErr != nil {
		return Result{}, probeErr
	}

	own := blackboard.Message{From: self}
	switch {
	case match != nil:
		own.Kind = blackboard.MessageFound
		own.Key = match.Key
		own.Plaintext = match.Plaintext
		own.Seq = uint64(self)
		p.logger.Info("key_found", zap.Uint64("key", match.Key))
	case errors.Is(err, search.ErrStopped):
		own.Kind = blackboard.MessageStopped
	case err != nil:
		return Result{}, fmt.Errorf("search of %s failed: %w", unit, err)
	case !unit.Empty && limit.Load() < unit.End:
		// Only the part of the range that could still win was searched.
		own.Kind = blackboard.MessageStopped
	default:
		own.Kind = blackboard.MessageExhausted
	}

	if err := tracker.Record(own); err != nil {
		return Result{}, err
	}
	if err := broadcast(ctx, p.t, own); err != nil {
		return Result{}, err
	}

	for !tracker.Complete() {
		msg, err := p.t.Recv(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("waiting for final reports: %w", err)
		}
		if err := tracker.Record(msg); err != nil {
			return Result{}, err
		}
	}

	return tracker.Resolve()
}
