// Package coord distributes a keyspace among the participants of a search
// session and terminates the search once a key is found or the keyspace is
// exhausted.
//
// Two strategies are supported. With the static strategy every participant
// owns a fixed range computed from its ID and exchanges final reports with its
// peers. With the dynamic strategy participant 0 becomes a dispatcher that
// hands out bounded units on request, and every other participant is a seeker
// that pulls units until it is told to stop.
package coord

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/dyluth/keyhunt/internal/logging"
	"github.com/dyluth/keyhunt/internal/search"
	"github.com/dyluth/keyhunt/internal/transport"
	"github.com/dyluth/keyhunt/pkg/blackboard"
	"github.com/dyluth/keyhunt/pkg/keyspace"
	"github.com/dyluth/keyhunt/pkg/oracle"
	"go.uber.org/zap"
)

var (
	// ErrProtocolViolation is returned when a participant receives a message
	// it cannot receive in its current state.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrConflictingResult is returned when two different keys are reported
	// as the winner of one session.
	ErrConflictingResult = errors.New("conflicting results")
)

// Result is the outcome of a session as seen by one participant.
type Result struct {
	Found     bool
	Key       uint64
	Plaintext []byte
	Finder    transport.ParticipantID
	Seq       uint64 // unit the key was found in
}

// Equal reports whether two participants agree on the outcome.
func (r Result) Equal(o Result) bool {
	if r.Found != o.Found {
		return false
	}
	if !r.Found {
		return true
	}
	return r.Key == o.Key && r.Finder == o.Finder && r.Seq == o.Seq && bytes.Equal(r.Plaintext, o.Plaintext)
}

func (r Result) String() string {
	if !r.Found {
		return "exhausted"
	}
	return fmt.Sprintf("key %d (participant %d, unit %d)", r.Key, r.Finder, r.Seq)
}

// Ledger records the units a dispatcher issues. RecordUnit fails when a unit
// was issued before.
type Ledger interface {
	RecordUnit(ctx context.Context, unit keyspace.WorkUnit) error
}

// Params configures one participant. Every participant of a session must be
// given the same Params.
type Params struct {
	Strategy blackboard.Strategy
	TieBreak blackboard.TieBreak
	Keyspace keyspace.Keyspace
	UnitSize uint64

	// Ledger is optional and used by the dispatcher only.
	Ledger Ledger
}

// Participant runs one member of a search session.
type Participant struct {
	params Params
	t      transport.Transport
	exec   *search.Executor
	oracle oracle.Oracle
	logger *zap.Logger
}

// NewParticipant validates params against the size of the transport and
// returns a participant ready to Run.
func NewParticipant(params Params, t transport.Transport, exec *search.Executor, o oracle.Oracle, logger *zap.Logger) (*Participant, error) {
	if params.TieBreak == "" {
		params.TieBreak = blackboard.TieBreakOrdered
	}
	if err := params.Strategy.Validate(); err != nil {
		return nil, err
	}
	if err := params.TieBreak.Validate(); err != nil {
		return nil, err
	}
	if err := params.Keyspace.Validate(); err != nil {
		return nil, err
	}
	if params.Strategy == blackboard.StrategyDynamic {
		if t.Size() < 2 {
			return nil, fmt.Errorf("dynamic strategy needs at least 2 participants, got %d", t.Size())
		}
		if params.UnitSize == 0 {
			return nil, keyspace.ErrInvalidUnitSize
		}
	}
	if exec == nil || o == nil {
		return nil, fmt.Errorf("participant needs an executor and an oracle")
	}

	return &Participant{
		params: params,
		t:      t,
		exec:   exec,
		oracle: o,
		logger: logging.OrNop(logger).With(
			zap.Int("participant", int(t.ID())),
			zap.String("strategy", string(params.Strategy)),
		),
	}, nil
}

// ID returns the participant's ID.
func (p *Participant) ID() transport.ParticipantID {
	return p.t.ID()
}

// Run takes part in the session until it is resolved. Every participant of
// a successful session returns an equal Result.
func (p *Participant) Run(ctx context.Context) (Result, error) {
	var (
		res Result
		err error
	)
	switch {
	case p.params.Strategy == blackboard.StrategyStatic:
		res, err = p.runStatic(ctx)
	case p.t.ID() == 0:
		res, err = p.runDispatcher(ctx)
	default:
		res, err = p.runSeeker(ctx)
	}
	if err != nil {
		return Result{}, err
	}

	p.logger.Info("participant_done",
		zap.Bool("found", res.Found),
		zap.Uint64("key", res.Key),
		zap.Int("finder", int(res.Finder)))
	return res, nil
}

func violation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrProtocolViolation, fmt.Sprintf(format, args...))
}
