package coord

import (
	"context"
	"errors"
	"fmt"

	"github.com/dyluth/keyhunt/internal/search"
	"github.com/dyluth/keyhunt/internal/transport"
	"github.com/dyluth/keyhunt/pkg/blackboard"
	"github.com/dyluth/keyhunt/pkg/keyspace"
	"go.uber.org/zap"
)

// dispatcher is the state of participant 0 under the dynamic strategy. It is
// owned by the goroutine running runDispatcher.
type dispatcher struct {
	p           *Participant
	cursor      *keyspace.Cursor
	outstanding map[transport.ParticipantID]keyspace.WorkUnit
	best        *blackboard.Message // winning Found so far
	halted      bool                // a Found arrived, no more units are issued
	verdict     *blackboard.Message // Stop or Exhausted, once sent
	acks        map[transport.ParticipantID]bool
}

// runDispatcher serves work requests in arrival order until the session is
// resolved and every seeker acknowledged the verdict.
func (p *Participant) runDispatcher(ctx context.Context) (Result, error) {
	cursor, err := keyspace.NewCursor(p.params.Keyspace, p.params.UnitSize)
	if err != nil {
		return Result{}, err
	}

	d := &dispatcher{
		p:           p,
		cursor:      cursor,
		outstanding: make(map[transport.ParticipantID]keyspace.WorkUnit),
		acks:        make(map[transport.ParticipantID]bool),
	}

	seekers := p.t.Size() - 1
	for len(d.acks) < seekers {
		msg, err := p.t.Recv(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("dispatcher receive: %w", err)
		}
		if err := d.handle(ctx, msg); err != nil {
			return Result{}, err
		}
	}

	p.logger.Info("units_issued", zap.Uint64("count", cursor.Issued()))
	return verdictResult(*d.verdict), nil
}

func (d *dispatcher) handle(ctx context.Context, msg blackboard.Message) error {
	switch msg.Kind {
	case blackboard.MessageWorkRequest:
		// A request completes the sender's previous unit without a match.
		delete(d.outstanding, msg.From)
		if err := d.checkResolution(ctx); err != nil {
			return err
		}
		if d.verdict != nil {
			// The verdict already went to this seeker and answers the request.
			return nil
		}
		return d.serve(ctx, msg.From)

	case blackboard.MessageFound:
		return d.found(ctx, msg)

	case blackboard.MessageAck:
		if d.verdict == nil {
			return violation("ack from %d before a verdict", msg.From)
		}
		if d.acks[msg.From] {
			return violation("duplicate ack from %d", msg.From)
		}
		d.acks[msg.From] = true
		return nil

	default:
		return violation("dispatcher got %s from %d", msg.Kind, msg.From)
	}
}

// serve answers a work request with the next unit, or NoMoreWork once the
// cursor is exhausted or a key was found.
func (d *dispatcher) serve(ctx context.Context, to transport.ParticipantID) error {
	if d.halted || d.cursor.Exhausted() {
		return d.p.t.Send(ctx, to, blackboard.Message{Kind: blackboard.MessageNoMoreWork})
	}

	unit, ok := d.cursor.Next()
	if !ok {
		return d.p.t.Send(ctx, to, blackboard.Message{Kind: blackboard.MessageNoMoreWork})
	}
	if d.p.params.Ledger != nil {
		if err := d.p.params.Ledger.RecordUnit(ctx, unit); err != nil {
			return fmt.Errorf("failed to record unit %s: %w", unit, err)
		}
	}

	d.outstanding[to] = unit
	d.p.logger.Debug("unit_issued", zap.Int("seeker", int(to)), zap.Stringer("unit", unit))
	return d.p.t.Send(ctx, to, blackboard.Message{Kind: blackboard.MessageWorkUnit, Unit: &unit})
}

func (d *dispatcher) found(ctx context.Context, msg blackboard.Message) error {
	unit, ok := d.outstanding[msg.From]
	if !ok || unit.Seq != msg.Seq {
		return violation("found from %d for unit %d it does not hold", msg.From, msg.Seq)
	}
	if !unit.Contains(msg.Key) {
		return violation("key %d reported by %d lies outside %s", msg.Key, msg.From, unit)
	}
	delete(d.outstanding, msg.From)
	d.halted = true

	d.p.logger.Info("key_reported",
		zap.Int("seeker", int(msg.From)),
		zap.Uint64("key", msg.Key),
		zap.Uint64("unit_seq", msg.Seq))

	switch {
	case d.best == nil:
		d.best = &msg
	case d.p.params.TieBreak == blackboard.TieBreakFirst && d.verdict != nil:
		// The Stop already went out; the seeker matched before it saw it.
		d.p.logger.Info("late_key_ignored",
			zap.Int("seeker", int(msg.From)),
			zap.Uint64("key", msg.Key),
			zap.Uint64("winning_key", d.best.Key))
		return nil
	case d.p.params.TieBreak == blackboard.TieBreakFirst:
		return fmt.Errorf("%w: participant %d found %d, participant %d found %d",
			ErrConflictingResult, d.best.From, d.best.Key, msg.From, msg.Key)
	case msg.Seq < d.best.Seq:
		if d.verdict != nil {
			return violation("unit %d resolved after verdict for unit %d", msg.Seq, d.best.Seq)
		}
		d.best = &msg
	}

	return d.checkResolution(ctx)
}

// checkResolution sends the verdict to every seeker once the outcome can no
// longer change.
func (d *dispatcher) checkResolution(ctx context.Context) error {
	if d.verdict != nil {
		return nil
	}

	var verdict blackboard.Message
	switch {
	case d.best != nil:
		if d.p.params.TieBreak == blackboard.TieBreakOrdered {
			for _, u := range d.outstanding {
				if u.Seq < d.best.Seq {
					return nil
				}
			}
		}
		verdict = blackboard.Message{
			Kind:      blackboard.MessageStop,
			Key:       d.best.Key,
			Plaintext: d.best.Plaintext,
			Seq:       d.best.Seq,
			Finder:    d.best.From,
		}
	case d.cursor.Exhausted() && len(d.outstanding) == 0:
		verdict = blackboard.Message{Kind: blackboard.MessageExhausted}
	default:
		return nil
	}

	d.verdict = &verdict
	d.p.logger.Info("verdict_sent", zap.String("kind", string(verdict.Kind)), zap.Uint64("key", verdict.Key))
	return broadcast(ctx, d.p.t, verdict)
}

// runSeeker pulls units from the dispatcher until it receives a verdict, then
// acknowledges it.
func (p *Participant) runSeeker(ctx context.Context) (Result, error) {
	const dispatcherID transport.ParticipantID = 0

	var (
		stop     Signal
		verdict  *blackboard.Message
		probeErr error
	)

	// probe runs on one executor worker at a time and never blocks. While a
	// unit is outstanding the dispatcher only ever sends a Stop verdict.
	probe := func() bool {
		if stop.Raised() || probeErr != nil {
			return true
		}
		msg, ok, err := p.t.TryRecv(ctx)
		if err != nil {
			probeErr = err
			return true
		}
		if !ok {
			return false
		}
		if msg.Kind != blackboard.MessageStop {
			probeErr = violation("seeker %d got %s while searching", p.t.ID(), msg.Kind)
			return true
		}
		verdict = &msg
		stop.Raise(msg.Key)
		return true
	}

	awaitVerdict := func() error {
		for verdict == nil {
			msg, err := p.t.Recv(ctx)
			if err != nil {
				return fmt.Errorf("waiting for verdict: %w", err)
			}
			switch msg.Kind {
			case blackboard.MessageStop, blackboard.MessageExhausted:
				verdict = &msg
			default:
				return violation("seeker %d got %s while waiting for a verdict", p.t.ID(), msg.Kind)
			}
		}
		return nil
	}

	for verdict == nil {
		if err := p.t.Send(ctx, dispatcherID, blackboard.Message{Kind: blackboard.MessageWorkRequest}); err != nil {
			return Result{}, err
		}

		reply, err := p.t.Recv(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("waiting for work: %w", err)
		}

		switch reply.Kind {
		case blackboard.MessageWorkUnit:
			if reply.Unit == nil {
				return Result{}, violation("work unit message without unit")
			}
			unit := *reply.Unit
			match, err := p.exec.Search(ctx, unit, p.oracle, probe)
			if probeErr != nil {
				return Result{}, probeErr
			}
			if verdict != nil {
				break
			}
			if err != nil && !errors.Is(err, search.ErrStopped) {
				return Result{}, fmt.Errorf("search of %s failed: %w", unit, err)
			}
			if match != nil {
				p.logger.Info("key_found", zap.Uint64("key", match.Key), zap.Uint64("unit_seq", unit.Seq))
				found := blackboard.Message{
					Kind:      blackboard.MessageFound,
					Key:       match.Key,
					Plaintext: match.Plaintext,
					Seq:       unit.Seq,
				}
				if err := p.t.Send(ctx, dispatcherID, found); err != nil {
					return Result{}, err
				}
				if err := awaitVerdict(); err != nil {
					return Result{}, err
				}
			}

		case blackboard.MessageNoMoreWork:
			if err := awaitVerdict(); err != nil {
				return Result{}, err
			}

		case blackboard.MessageStop, blackboard.MessageExhausted:
			verdict = &reply

		default:
			return Result{}, violation("seeker %d got %s in reply to a work request", p.t.ID(), reply.Kind)
		}
	}

	if err := p.t.Send(ctx, dispatcherID, blackboard.Message{Kind: blackboard.MessageAck}); err != nil {
		return Result{}, err
	}
	return verdictResult(*verdict), nil
}

func verdictResult(v blackboard.Message) Result {
	if v.Kind != blackboard.MessageStop {
		return Result{}
	}
	return Result{
		Found:     true,
		Key:       v.Key,
		Plaintext: v.Plaintext,
		Finder:    v.Finder,
		Seq:       v.Seq,
	}
}
