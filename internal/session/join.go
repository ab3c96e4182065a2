package session

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/keyhunt/internal/coord"
	"github.com/dyluth/keyhunt/internal/logging"
	"github.com/dyluth/keyhunt/internal/search"
	"github.com/dyluth/keyhunt/internal/transport"
	"github.com/dyluth/keyhunt/internal/watch"
	"github.com/dyluth/keyhunt/pkg/blackboard"
	"github.com/dyluth/keyhunt/pkg/keyspace"
	"github.com/dyluth/keyhunt/pkg/oracle"
	"go.uber.org/zap"
)

// unitLedger records dispatched units on the blackboard.
type unitLedger struct {
	client    *blackboard.Client
	sessionID string
}

func (l *unitLedger) RecordUnit(ctx context.Context, unit keyspace.WorkUnit) error {
	return l.client.RecordUnit(ctx, l.sessionID, unit)
}

func waitForMembers(ctx context.Context, client *blackboard.Client, sessionID string, n int, timeout time.Duration) error {
	return watch.PollForMembers(ctx, client, sessionID, int64(n), timeout)
}

// JoinOptions configures a participant joining a session from another process.
type JoinOptions struct {
	Workers      int
	PollInterval int
	// Timeout bounds the wait for the session to start. Zero means DefaultJoinTimeout.
	Timeout time.Duration
}

// Join runs participant id of a session created by another process. It
// registers with the session, waits until the search starts and takes part
// until the session is resolved.
func Join(ctx context.Context, client *blackboard.Client, sessionID string, id transport.ParticipantID, opts JoinOptions, logger *zap.Logger) (coord.Result, error) {
	logger = logging.OrNop(logger).With(zap.String("session", sessionID))
	if opts.Timeout == 0 {
		opts.Timeout = DefaultJoinTimeout
	}

	record, err := client.GetSession(ctx, sessionID)
	if err != nil {
		if blackboard.IsNotFound(err) {
			return coord.Result{}, fmt.Errorf("session %s not found", sessionID)
		}
		return coord.Result{}, err
	}
	if int(id) < 0 || int(id) >= record.Participants {
		return coord.Result{}, fmt.Errorf("participant ID %d out of range [0, %d)", id, record.Participants)
	}
	if record.Status != blackboard.SessionStatusConfiguring {
		return coord.Result{}, fmt.Errorf("%w: cannot join session in state %s", ErrInvalidTransition, record.Status)
	}

	if _, err := client.JoinSession(ctx, sessionID, id); err != nil {
		return coord.Result{}, err
	}
	logger.Info("session_joined", zap.Int("participant", int(id)))

	record, err = watch.PollForStatus(ctx, client, sessionID, watch.Started, opts.Timeout)
	if err != nil {
		return coord.Result{}, err
	}
	if record.Status != blackboard.SessionStatusSearching {
		return coord.Result{}, fmt.Errorf("session ended in state %s before participant %d started", record.Status, id)
	}

	o, err := oracle.NewDES(record.Ciphertext, record.Phrase)
	if err != nil {
		return coord.Result{}, err
	}
	ep, err := transport.NewRedisEndpoint(client, sessionID, id, record.Participants)
	if err != nil {
		return coord.Result{}, err
	}
	defer ep.Close()

	params := coord.Params{
		Strategy: record.Strategy,
		TieBreak: record.TieBreak,
		Keyspace: record.Keyspace,
		UnitSize: record.UnitSize,
	}
	if id == 0 {
		params.Ledger = &unitLedger{client: client, sessionID: sessionID}
	}

	p, err := coord.NewParticipant(params, ep, search.NewExecutor(opts.Workers, opts.PollInterval, logger), o, logger)
	if err != nil {
		return coord.Result{}, err
	}
	return p.Run(ctx)
}
