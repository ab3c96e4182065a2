// Package session drives one search from configuration to its outcome: it
// plants the key, starts the locally hosted participants, checks that they
// agree and reports the result with the elapsed search time.
package session

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/dyluth/keyhunt/internal/coord"
	"github.com/dyluth/keyhunt/internal/logging"
	"github.com/dyluth/keyhunt/internal/search"
	"github.com/dyluth/keyhunt/internal/transport"
	"github.com/dyluth/keyhunt/pkg/blackboard"
	"github.com/dyluth/keyhunt/pkg/keyspace"
	"github.com/dyluth/keyhunt/pkg/oracle"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidTransition is returned when an operation is not allowed in the
// session's current state.
var ErrInvalidTransition = errors.New("invalid session transition")

// DefaultJoinTimeout bounds how long a distributed session waits for its
// participants to join.
const DefaultJoinTimeout = 5 * time.Minute

// transitions lists the allowed state changes.
var transitions = map[blackboard.SessionStatus][]blackboard.SessionStatus{
	blackboard.SessionStatusIdle:        {blackboard.SessionStatusConfiguring, blackboard.SessionStatusFailed},
	blackboard.SessionStatusConfiguring: {blackboard.SessionStatusSearching, blackboard.SessionStatusFailed},
	blackboard.SessionStatusSearching:   {blackboard.SessionStatusFound, blackboard.SessionStatusExhausted, blackboard.SessionStatusFailed},
}

// Config describes a search.
type Config struct {
	Strategy     blackboard.Strategy
	TieBreak     blackboard.TieBreak
	Participants int
	// Local is the number of participants hosted by this process; they take
	// IDs [0, Local). Zero hosts all of them. Hosting fewer than all requires
	// a blackboard.
	Local        int
	Workers      int // per participant; 0 shares runtime.NumCPU() among local participants
	PollInterval int
	UnitSize     uint64
	Keyspace     keyspace.Keyspace
	JoinTimeout  time.Duration
}

// Validate checks the configuration and fills in defaults.
func (c *Config) Validate() error {
	if c.TieBreak == "" {
		c.TieBreak = blackboard.TieBreakOrdered
	}
	if err := c.Strategy.Validate(); err != nil {
		return err
	}
	if err := c.TieBreak.Validate(); err != nil {
		return err
	}
	if c.Participants < 1 {
		return fmt.Errorf("participants must be >= 1, got %d", c.Participants)
	}
	if c.Strategy == blackboard.StrategyDynamic {
		if c.Participants < 2 {
			return fmt.Errorf("dynamic strategy needs at least 2 participants, got %d", c.Participants)
		}
		if c.UnitSize == 0 {
			return keyspace.ErrInvalidUnitSize
		}
	}
	if c.Local == 0 {
		c.Local = c.Participants
	}
	if c.Local < 0 || c.Local > c.Participants {
		return fmt.Errorf("local participants must be in [1, %d], got %d", c.Participants, c.Local)
	}
	if c.Workers < 0 || c.PollInterval < 0 {
		return fmt.Errorf("workers and poll interval must not be negative")
	}
	if c.JoinTimeout == 0 {
		c.JoinTimeout = DefaultJoinTimeout
	}
	return c.Keyspace.Validate()
}

func (c *Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	if w := runtime.NumCPU() / c.Local; w > 1 {
		return w
	}
	return 1
}

// Report is the outcome of a finished session.
type Report struct {
	SessionID string
	Status    blackboard.SessionStatus
	Result    coord.Result
	Elapsed   time.Duration
}

// Session is one search. Configure must be called before Run.
type Session struct {
	mu     sync.Mutex
	status blackboard.SessionStatus

	cfg    Config
	record *blackboard.Session
	oracle oracle.Oracle
	client *blackboard.Client
	logger *zap.Logger
	stored bool // record exists on the blackboard

	startedAt  time.Time
	finishedAt time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithBlackboard attaches a blackboard. Every transition is persisted to it
// and participants not hosted locally can join the session through it.
func WithBlackboard(client *blackboard.Client) Option {
	return func(s *Session) { s.client = client }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// New returns an idle session.
func New(cfg Config, opts ...Option) (*Session, error) {
	s := &Session{
		status: blackboard.SessionStatusIdle,
		cfg:    cfg,
		record: &blackboard.Session{ID: uuid.New().String()},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrNop(s.logger).With(zap.String("session", s.record.ID))
	return s, nil
}

// ID returns the session's UUID.
func (s *Session) ID() string {
	return s.record.ID
}

// Status returns the current state.
func (s *Session) Status() blackboard.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Configure validates the configuration and encrypts plaintext with the
// planted key. A weak planted key is rejected with oracle.ErrWeakKey.
func (s *Session) Configure(ctx context.Context, plaintext []byte, phrase string, key uint64) error {
	if err := s.transition(ctx, blackboard.SessionStatusConfiguring); err != nil {
		return err
	}

	ciphertext, err := oracle.Encrypt(key, plaintext)
	if err != nil {
		return s.fail(ctx, fmt.Errorf("failed to plant key: %w", err))
	}
	return s.configure(ctx, ciphertext, phrase)
}

func (s *Session) configure(ctx context.Context, ciphertext []byte, phrase string) error {
	if err := s.cfg.Validate(); err != nil {
		return s.fail(ctx, fmt.Errorf("invalid configuration: %w", err))
	}
	if s.cfg.Local < s.cfg.Participants && s.client == nil {
		return s.fail(ctx, fmt.Errorf("hosting %d of %d participants requires a blackboard", s.cfg.Local, s.cfg.Participants))
	}

	o, err := oracle.NewDES(ciphertext, phrase)
	if err != nil {
		return s.fail(ctx, err)
	}
	s.oracle = o

	s.mu.Lock()
	s.record.Strategy = s.cfg.Strategy
	s.record.TieBreak = s.cfg.TieBreak
	s.record.Participants = s.cfg.Participants
	s.record.UnitSize = s.cfg.UnitSize
	s.record.Keyspace = s.cfg.Keyspace
	s.record.Ciphertext = ciphertext
	s.record.Phrase = phrase
	s.record.CreatedAtMs = time.Now().UnixMilli()
	record := *s.record
	s.mu.Unlock()

	if s.client == nil {
		return nil
	}

	if err := s.client.CreateSession(ctx, &record); err != nil {
		return s.fail(ctx, err)
	}
	s.mu.Lock()
	s.stored = true
	s.mu.Unlock()

	for id := 0; id < s.cfg.Local; id++ {
		if _, err := s.client.JoinSession(ctx, s.record.ID, blackboard.ParticipantID(id)); err != nil {
			return s.fail(ctx, err)
		}
	}
	return nil
}

// Run searches until every local participant returned, then reports the
// outcome. With a blackboard attached and remote participants configured, Run
// first waits until all of them joined.
func (s *Session) Run(ctx context.Context) (Report, error) {
	if st := s.Status(); st != blackboard.SessionStatusConfiguring {
		return Report{}, fmt.Errorf("%w: run in state %s", ErrInvalidTransition, st)
	}

	if s.client != nil && s.cfg.Local < s.cfg.Participants {
		s.logger.Info("waiting_for_participants", zap.Int("participants", s.cfg.Participants))
		if err := waitForMembers(ctx, s.client, s.ID(), s.cfg.Participants, s.cfg.JoinTimeout); err != nil {
			return Report{}, s.fail(ctx, err)
		}
	}

	if err := s.transition(ctx, blackboard.SessionStatusSearching); err != nil {
		return Report{}, err
	}

	endpoints, err := s.endpoints()
	if err != nil {
		return Report{}, s.fail(ctx, err)
	}

	results, err := s.runParticipants(ctx, endpoints)
	if err != nil {
		return Report{}, s.fail(ctx, err)
	}

	result := results[0]
	for i, r := range results[1:] {
		if !result.Equal(r) {
			return Report{}, s.fail(ctx, fmt.Errorf("%w: participant 0 reported %s, participant %d reported %s",
				coord.ErrConflictingResult, result, i+1, r))
		}
	}

	final := blackboard.SessionStatusExhausted
	if result.Found {
		final = blackboard.SessionStatusFound
		s.mu.Lock()
		s.record.Result = &blackboard.SessionResult{
			Key:       result.Key,
			Plaintext: result.Plaintext,
			Finder:    result.Finder,
			Seq:       result.Seq,
		}
		s.mu.Unlock()
	}
	if err := s.transition(ctx, final); err != nil {
		return Report{}, err
	}

	return Report{
		SessionID: s.ID(),
		Status:    final,
		Result:    result,
		Elapsed:   s.elapsed(),
	}, nil
}

func (s *Session) endpoints() ([]transport.Transport, error) {
	eps := make([]transport.Transport, s.cfg.Local)

	if s.client == nil {
		net, err := transport.NewNetwork(s.cfg.Participants)
		if err != nil {
			return nil, err
		}
		for i := range eps {
			if eps[i], err = net.Endpoint(transport.ParticipantID(i)); err != nil {
				return nil, err
			}
		}
		return eps, nil
	}

	for i := range eps {
		ep, err := transport.NewRedisEndpoint(s.client, s.ID(), transport.ParticipantID(i), s.cfg.Participants)
		if err != nil {
			return nil, err
		}
		eps[i] = ep
	}
	return eps, nil
}

func (s *Session) runParticipants(ctx context.Context, endpoints []transport.Transport) ([]coord.Result, error) {
	params := coord.Params{
		Strategy: s.cfg.Strategy,
		TieBreak: s.cfg.TieBreak,
		Keyspace: s.cfg.Keyspace,
		UnitSize: s.cfg.UnitSize,
	}
	if s.client != nil {
		params.Ledger = &unitLedger{client: s.client, sessionID: s.ID()}
	}

	participants := make([]*coord.Participant, len(endpoints))
	for i, ep := range endpoints {
		exec := search.NewExecutor(s.cfg.workers(), s.cfg.PollInterval, s.logger)
		p, err := coord.NewParticipant(params, ep, exec, s.oracle, s.logger)
		if err != nil {
			return nil, err
		}
		participants[i] = p
	}

	results := make([]coord.Result, len(participants))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range participants {
		idx, participant, ep := i, p, endpoints[i]
		g.Go(func() error {
			defer ep.Close()
			res, err := participant.Run(gctx)
			if err != nil {
				return fmt.Errorf("participant %d: %w", idx, err)
			}
			results[idx] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Session) elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finishedAt.IsZero() {
		return time.Since(s.startedAt)
	}
	return s.finishedAt.Sub(s.startedAt)
}

// transition moves the session to next and persists the record.
func (s *Session) transition(ctx context.Context, next blackboard.SessionStatus) error {
	s.mu.Lock()
	from := s.status
	if !allowed(from, next) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, next)
	}

	s.status = next
	s.record.Status = next
	now := time.Now()
	switch {
	case next == blackboard.SessionStatusSearching:
		s.startedAt = now
		s.record.StartedAtMs = now.UnixMilli()
	case next.IsTerminal():
		s.finishedAt = now
		s.record.FinishedAtMs = now.UnixMilli()
	}
	record := *s.record
	stored := s.stored
	s.mu.Unlock()

	s.logger.Info("session_transition", zap.String("from", string(from)), zap.String("to", string(next)))

	if s.client == nil || !stored {
		return nil
	}
	if err := s.client.UpdateSession(ctx, &record); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

// fail moves the session to failed, persists the cause and returns err.
func (s *Session) fail(ctx context.Context, err error) error {
	s.mu.Lock()
	s.record.Error = err.Error()
	s.mu.Unlock()

	// Persist even when ctx was cancelled, so observers see the failure.
	if terr := s.transition(context.WithoutCancel(ctx), blackboard.SessionStatusFailed); terr != nil {
		s.logger.Warn("session_failure_not_recorded", zap.Error(terr))
	}
	return err
}

func allowed(from, to blackboard.SessionStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
