package coord

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dyluth/keyhunt/internal/transport"
	"github.com/dyluth/keyhunt/pkg/blackboard"
	"github.com/dyluth/keyhunt/pkg/keyspace"
)

// Signal is a one-shot stop flag. Once raised it stays raised, and only the
// first Raise records a key.
type Signal struct {
	once   sync.Once
	raised atomic.Bool
	key    uint64
}

// Raise sets the flag and reports whether this call was the one that set it.
func (s *Signal) Raise(key uint64) bool {
	first := false
	s.once.Do(func() {
		s.key = key
		s.raised.Store(true)
		first = true
	})
	return first
}

// Raised reports whether Raise was called. Safe for concurrent use.
func (s *Signal) Raised() bool {
	return s.raised.Load()
}

// Key returns the key of the first Raise.
func (s *Signal) Key() (uint64, bool) {
	if !s.raised.Load() {
		return 0, false
	}
	return s.key, true
}

// report is the final message of one static participant.
type report struct {
	kind      blackboard.MessageKind
	key       uint64
	plaintext []byte
}

// Tracker is a static participant's view of the final reports of the session,
// its own included. It is owned by one goroutine.
//
// Under TieBreakOrdered matches are ranked by their offset from the start of
// the finder's range, then by participant ID: the order in which keys come up
// when every range is scanned at the same pace. A match at offset o lets
// every other participant stop once it has scanned its own range up to o, so
// no range is searched further than the best match known so far.
type Tracker struct {
	self    transport.ParticipantID
	ranges  []keyspace.WorkUnit
	policy  blackboard.TieBreak
	reports map[transport.ParticipantID]report
	found   []transport.ParticipantID // finders in arrival order
}

// NewTracker returns an empty tracker for participant self, where ranges[i]
// is the range owned by participant i.
func NewTracker(self transport.ParticipantID, ranges []keyspace.WorkUnit, policy blackboard.TieBreak) *Tracker {
	return &Tracker{
		self:    self,
		ranges:  ranges,
		policy:  policy,
		reports: make(map[transport.ParticipantID]report, len(ranges)),
	}
}

// Record stores the final report carried by msg. Each participant reports
// exactly once. Under TieBreakFirst a second Found with a different key
// returns ErrConflictingResult.
func (t *Tracker) Record(msg transport.Message) error {
	switch msg.Kind {
	case blackboard.MessageFound, blackboard.MessageExhausted, blackboard.MessageStopped:
	default:
		return violation("static participant %d got %s from %d", t.self, msg.Kind, msg.From)
	}
	if msg.From < 0 || int(msg.From) >= len(t.ranges) {
		return violation("report from unknown participant %d", msg.From)
	}
	if _, dup := t.reports[msg.From]; dup {
		return violation("participant %d reported twice", msg.From)
	}

	if msg.Kind == blackboard.MessageFound {
		if r := t.ranges[msg.From]; !r.Contains(msg.Key) {
			return violation("key %d reported by %d lies outside %s", msg.Key, msg.From, r)
		}
		if t.policy == blackboard.TieBreakFirst && len(t.found) > 0 {
			first := t.reports[t.found[0]]
			if first.key != msg.Key {
				return fmt.Errorf("%w: participant %d found %d, participant %d found %d",
					ErrConflictingResult, t.found[0], first.key, msg.From, msg.Key)
			}
		}
		t.found = append(t.found, msg.From)
	}

	t.reports[msg.From] = report{kind: msg.Kind, key: msg.Key, plaintext: msg.Plaintext}
	return nil
}

// offset returns how far the key found by id lies into its range.
func (t *Tracker) offset(id transport.ParticipantID) uint64 {
	return t.reports[id].key - t.ranges[id].Start
}

// Bound returns the last key of the own range that can still beat the
// matches recorded so far, and false once no key of the range can.
func (t *Tracker) Bound() (uint64, bool) {
	own := t.ranges[t.self]
	if own.Empty {
		return 0, false
	}
	span := own.End - own.Start

	bound := own.End
	for _, id := range t.found {
		if id == t.self {
			continue
		}
		off := t.offset(id)
		if id < t.self {
			// Equal offsets go to the lower ID.
			if off == 0 {
				return 0, false
			}
			off--
		}
		if off < span && own.Start+off < bound {
			bound = own.Start + off
		}
	}
	return bound, true
}

// ShouldStop reports whether the local search can be abandoned. Under
// TieBreakFirst any match ends it; under TieBreakOrdered only a match that
// no key left in the own range can beat.
func (t *Tracker) ShouldStop() bool {
	if t.policy == blackboard.TieBreakFirst {
		return len(t.found) > 0
	}
	_, ok := t.Bound()
	return !ok && len(t.found) > 0
}

// Complete reports whether every participant has reported.
func (t *Tracker) Complete() bool {
	return len(t.reports) == len(t.ranges)
}

// Resolve returns the outcome once the tracker is complete. Under
// TieBreakOrdered the winner is the match with the smallest offset into its
// range, ties going to the lower participant ID. Under TieBreakFirst Record
// already rejected a second key, so the only reported key wins.
func (t *Tracker) Resolve() (Result, error) {
	if !t.Complete() {
		return Result{}, fmt.Errorf("resolve with %d of %d reports", len(t.reports), len(t.ranges))
	}

	if len(t.found) == 0 {
		for id := transport.ParticipantID(0); int(id) < len(t.ranges); id++ {
			if t.reports[id].kind == blackboard.MessageStopped {
				return Result{}, violation("participant %d stopped but nobody found a key", id)
			}
		}
		return Result{}, nil
	}

	if t.policy == blackboard.TieBreakFirst {
		return t.result(t.found[0]), nil
	}

	winner := t.found[0]
	for _, id := range t.found[1:] {
		off, best := t.offset(id), t.offset(winner)
		if off < best || (off == best && id < winner) {
			winner = id
		}
	}
	return t.result(winner), nil
}

func (t *Tracker) result(finder transport.ParticipantID) Result {
	r := t.reports[finder]
	return Result{
		Found:     true,
		Key:       r.key,
		Plaintext: bytes.Clone(r.plaintext),
		Finder:    finder,
		Seq:       uint64(finder),
	}
}

// broadcast sends msg point-to-point to every other participant.
func broadcast(ctx context.Context, t transport.Transport, msg transport.Message) error {
	for to := transport.ParticipantID(0); int(to) < t.Size(); to++ {
		if to == t.ID() {
			continue
		}
		if err := t.Send(ctx, to, msg); err != nil {
			return fmt.Errorf("failed to send %s to participant %d: %w", msg.Kind, to, err)
		}
	}
	return nil
}
