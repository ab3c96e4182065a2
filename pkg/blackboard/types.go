package blackboard

import (
	"bytes"
	"fmt"

	"github.com/dyluth/keyhunt/pkg/keyspace"
	"github.com/google/uuid"
)

// ParticipantID identifies a participant within a session, in [0, Participants).
type ParticipantID int

// Strategy selects how the keyspace is distributed among participants.
type Strategy string

const (
	// StrategyStatic gives every participant a fixed range computed from its ID.
	StrategyStatic Strategy = "static"

	// StrategyDynamic has participant 0 hand out bounded units on request.
	StrategyDynamic Strategy = "dynamic"
)

// TieBreak selects how competing matches from different units are resolved.
type TieBreak string

const (
	// TieBreakOrdered makes the outcome independent of message arrival
	// order. Dynamic sessions pick the match from the earliest issued unit.
	// Static sessions pick the match nearest the start of its range, ties
	// going to the lower participant ID.
	TieBreakOrdered TieBreak = "ordered"

	// TieBreakFirst accepts the first reported match and stops everyone at
	// once. A second match with a different key aborts the session.
	TieBreakFirst TieBreak = "first"
)

// SessionStatus is the lifecycle state of a search session.
// Sessions progress idle → configuring → searching → found | exhausted.
// Any non-terminal state may move to failed.
type SessionStatus string

const (
	SessionStatusIdle        SessionStatus = "idle"
	SessionStatusConfiguring SessionStatus = "configuring"
	SessionStatusSearching   SessionStatus = "searching"
	SessionStatusFound       SessionStatus = "found"
	SessionStatusExhausted   SessionStatus = "exhausted"
	SessionStatusFailed      SessionStatus = "failed"
)

// Session is the shared record of one search.
type Session struct {
	ID           string            `json:"id"`           // UUID
	Strategy     Strategy          `json:"strategy"`     // static or dynamic
	TieBreak     TieBreak          `json:"tie_break"`    // ordered or first
	Participants int               `json:"participants"` // total participant count, including the dispatcher
	UnitSize     uint64            `json:"unit_size"`    // dynamic unit size
	Keyspace     keyspace.Keyspace `json:"keyspace"`     // inclusive bounds
	Ciphertext   []byte            `json:"ciphertext"`   // zero-padded, block aligned
	Phrase       string            `json:"phrase"`
	Status       SessionStatus     `json:"status"`
	Result       *SessionResult    `json:"result,omitempty"` // set when Status is found
	Error        string            `json:"error,omitempty"`  // set when Status is failed
	CreatedAtMs  int64             `json:"created_at_ms"`
	StartedAtMs  int64             `json:"started_at_ms,omitempty"`  // entered searching
	FinishedAtMs int64             `json:"finished_at_ms,omitempty"` // reached a terminal state
}

// SessionResult is the winning key of a session.
type SessionResult struct {
	Key       uint64        `json:"key"`
	Plaintext []byte        `json:"plaintext"`
	Finder    ParticipantID `json:"finder"`
	Seq       uint64        `json:"seq"` // unit the key was found in
}

// MessageKind tags a coordination message with its purpose.
type MessageKind string

const (
	// MessageWorkRequest asks the dispatcher for a unit.
	MessageWorkRequest MessageKind = "work_request"

	// MessageWorkUnit carries an issued unit in reply to a request.
	MessageWorkUnit MessageKind = "work_unit"

	// MessageNoMoreWork tells a seeker that no further units will be issued.
	MessageNoMoreWork MessageKind = "no_more_work"

	// MessageFound reports a match: Key, Plaintext and the unit Seq.
	MessageFound MessageKind = "found"

	// MessageStop is the final verdict of a resolved session: stop, Key
	// found by Finder in unit Seq won.
	MessageStop MessageKind = "stop"

	// MessageExhausted reports that a range (static) or the whole keyspace
	// (dynamic verdict) held no match.
	MessageExhausted MessageKind = "exhausted"

	// MessageStopped reports that a static participant left part of its
	// range unsearched because another participant's match already beat it.
	MessageStopped MessageKind = "stopped"

	// MessageAck is a seeker's last message to the dispatcher.
	MessageAck MessageKind = "ack"
)

// Message is a point-to-point coordination message between participants.
type Message struct {
	Kind      MessageKind        `json:"kind"`
	From      ParticipantID      `json:"from"`
	Unit      *keyspace.WorkUnit `json:"unit,omitempty"`
	Key       uint64             `json:"key,omitempty"`
	Plaintext []byte             `json:"plaintext,omitempty"`
	Seq       uint64             `json:"seq,omitempty"`
	Finder    ParticipantID      `json:"finder,omitempty"` // stop verdicts only
}

// Clone returns a deep copy so that payloads are never aliased between
// participants.
func (m Message) Clone() Message {
	out := m
	if m.Unit != nil {
		u := *m.Unit
		out.Unit = &u
	}
	if m.Plaintext != nil {
		out.Plaintext = bytes.Clone(m.Plaintext)
	}
	return out
}

// Validate checks that the message carries the fields its kind requires.
func (m Message) Validate() error {
	switch m.Kind {
	case MessageWorkUnit:
		if m.Unit == nil {
			return fmt.Errorf("%s message without unit", m.Kind)
		}
	case MessageWorkRequest, MessageNoMoreWork, MessageFound, MessageStop,
		MessageExhausted, MessageStopped, MessageAck:
	default:
		return fmt.Errorf("unknown message kind: %q", m.Kind)
	}
	if m.From < 0 {
		return fmt.Errorf("invalid sender: %d", m.From)
	}
	return nil
}

// Validate checks if the Session has valid field values.
func (s *Session) Validate() error {
	if !isValidUUID(s.ID) {
		return fmt.Errorf("invalid session ID: not a valid UUID")
	}

	if err := s.Strategy.Validate(); err != nil {
		return fmt.Errorf("invalid strategy: %w", err)
	}

	if err := s.TieBreak.Validate(); err != nil {
		return fmt.Errorf("invalid tie break: %w", err)
	}

	if s.Participants < 1 {
		return fmt.Errorf("participants must be >= 1, got %d", s.Participants)
	}

	if s.Strategy == StrategyDynamic {
		if s.Participants < 2 {
			return fmt.Errorf("dynamic strategy needs a dispatcher and at least one seeker, got %d participants", s.Participants)
		}
		if s.UnitSize == 0 {
			return fmt.Errorf("unit size must be > 0 for dynamic strategy")
		}
	}

	if err := s.Keyspace.Validate(); err != nil {
		return err
	}

	if s.Phrase == "" {
		return fmt.Errorf("phrase cannot be empty")
	}

	if err := s.Status.Validate(); err != nil {
		return fmt.Errorf("invalid status: %w", err)
	}

	if s.Status == SessionStatusFound && s.Result == nil {
		return fmt.Errorf("session status is found but result is missing")
	}

	return nil
}

// Validate checks if the Strategy is a valid enum value.
func (st Strategy) Validate() error {
	switch st {
	case StrategyStatic, StrategyDynamic:
		return nil
	default:
		return fmt.Errorf("unknown strategy: %q", st)
	}
}

// Validate checks if the TieBreak is a valid enum value.
func (tb TieBreak) Validate() error {
	switch tb {
	case TieBreakOrdered, TieBreakFirst:
		return nil
	default:
		return fmt.Errorf("unknown tie break: %q", tb)
	}
}

// Validate checks if the SessionStatus is a valid enum value.
func (ss SessionStatus) Validate() error {
	switch ss {
	case SessionStatusIdle, SessionStatusConfiguring, SessionStatusSearching,
		SessionStatusFound, SessionStatusExhausted, SessionStatusFailed:
		return nil
	default:
		return fmt.Errorf("unknown session status: %q", ss)
	}
}

// IsTerminal reports whether no further transition is possible.
func (ss SessionStatus) IsTerminal() bool {
	return ss == SessionStatusFound || ss == SessionStatusExhausted || ss == SessionStatusFailed
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
