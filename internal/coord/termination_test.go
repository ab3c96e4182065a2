package coord

import (
	"context"
	"sync"
	"testing"

	"github.com/dyluth/keyhunt/internal/transport"
	"github.com/dyluth/keyhunt/pkg/blackboard"
	"github.com/dyluth/keyhunt/pkg/keyspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func found(from transport.ParticipantID, key uint64) transport.Message {
	return transport.Message{Kind: blackboard.MessageFound, From: from, Key: key, Plaintext: []byte("p"), Seq: uint64(from)}
}

func finalReport(kind blackboard.MessageKind, from transport.ParticipantID) transport.Message {
	return transport.Message{Kind: kind, From: from}
}

func TestSignal(t *testing.T) {
	var s Signal
	assert.False(t, s.Raised())
	_, ok := s.Key()
	assert.False(t, ok)

	var wg sync.WaitGroup
	var firsts sync.Map
	for i := uint64(1); i <= 16; i++ {
		wg.Add(1)
		go func(key uint64) {
			defer wg.Done()
			if s.Raise(key) {
				firsts.Store(key, true)
			}
		}(i)
	}
	wg.Wait()

	count := 0
	var winner uint64
	firsts.Range(func(k, _ any) bool {
		count++
		winner = k.(uint64)
		return true
	})
	assert.Equal(t, 1, count, "exactly one Raise wins")

	assert.True(t, s.Raised())
	key, ok := s.Key()
	assert.True(t, ok)
	assert.Equal(t, winner, key)

	assert.False(t, s.Raise(99), "raising again is a no-op")
	key, _ = s.Key()
	assert.Equal(t, winner, key)
}

// splitRanges splits [0,999] over n participants; with n = 4 they start at 0,
// 249, 498 and 747.
func splitRanges(t *testing.T, n int) []keyspace.WorkUnit {
	t.Helper()
	units, err := keyspace.Partition(keyspace.Keyspace{Lower: 0, Upper: 999}, n)
	require.NoError(t, err)
	return units
}

func TestTrackerOrdered(t *testing.T) {
	t.Run("a match bounds every other range", func(t *testing.T) {
		tr := NewTracker(1, splitRanges(t, 4), blackboard.TieBreakOrdered)
		bound, ok := tr.Bound()
		require.True(t, ok)
		assert.Equal(t, uint64(497), bound)

		// Offset 150 in a later range: ties go to participant 1.
		require.NoError(t, tr.Record(found(3, 897)))
		bound, ok = tr.Bound()
		require.True(t, ok)
		assert.Equal(t, uint64(249+150), bound)
		assert.False(t, tr.ShouldStop())

		// Offset 40 in an earlier range: participant 1 must beat it strictly.
		require.NoError(t, tr.Record(found(0, 40)))
		bound, ok = tr.Bound()
		require.True(t, ok)
		assert.Equal(t, uint64(249+39), bound)
		assert.False(t, tr.ShouldStop())
	})

	t.Run("stops on a match at the start of an earlier range", func(t *testing.T) {
		tr := NewTracker(2, splitRanges(t, 4), blackboard.TieBreakOrdered)
		require.NoError(t, tr.Record(found(3, 747)))
		assert.False(t, tr.ShouldStop(), "participant 2 still owns offset 0")
		require.NoError(t, tr.Record(found(1, 249)))
		_, ok := tr.Bound()
		assert.False(t, ok)
		assert.True(t, tr.ShouldStop())
	})

	t.Run("smallest offset wins regardless of arrival order", func(t *testing.T) {
		tr := NewTracker(0, splitRanges(t, 4), blackboard.TieBreakOrdered)
		require.NoError(t, tr.Record(found(3, 987)))
		require.NoError(t, tr.Record(finalReport(blackboard.MessageStopped, 0)))
		require.NoError(t, tr.Record(found(1, 300)))
		assert.False(t, tr.Complete())
		require.NoError(t, tr.Record(finalReport(blackboard.MessageStopped, 2)))
		require.True(t, tr.Complete())

		res, err := tr.Resolve()
		require.NoError(t, err)
		assert.Equal(t, Result{Found: true, Key: 300, Plaintext: []byte("p"), Finder: 1, Seq: 1}, res)
	})

	t.Run("equal offsets go to the lower participant", func(t *testing.T) {
		tr := NewTracker(0, splitRanges(t, 4), blackboard.TieBreakOrdered)
		require.NoError(t, tr.Record(found(2, 510)))
		require.NoError(t, tr.Record(found(1, 261)))
		require.NoError(t, tr.Record(finalReport(blackboard.MessageStopped, 0)))
		require.NoError(t, tr.Record(finalReport(blackboard.MessageExhausted, 3)))
		res, err := tr.Resolve()
		require.NoError(t, err)
		assert.Equal(t, uint64(261), res.Key)
		assert.Equal(t, transport.ParticipantID(1), res.Finder)
	})

	t.Run("all exhausted", func(t *testing.T) {
		tr := NewTracker(0, splitRanges(t, 2), blackboard.TieBreakOrdered)
		require.NoError(t, tr.Record(finalReport(blackboard.MessageExhausted, 0)))
		require.NoError(t, tr.Record(finalReport(blackboard.MessageExhausted, 1)))
		res, err := tr.Resolve()
		require.NoError(t, err)
		assert.False(t, res.Found)
	})

	t.Run("stopped without any finder", func(t *testing.T) {
		tr := NewTracker(0, splitRanges(t, 2), blackboard.TieBreakOrdered)
		require.NoError(t, tr.Record(finalReport(blackboard.MessageStopped, 0)))
		require.NoError(t, tr.Record(finalReport(blackboard.MessageExhausted, 1)))
		_, err := tr.Resolve()
		assert.ErrorIs(t, err, ErrProtocolViolation)
	})

	t.Run("key outside the finder's range", func(t *testing.T) {
		tr := NewTracker(0, splitRanges(t, 4), blackboard.TieBreakOrdered)
		assert.ErrorIs(t, tr.Record(found(1, 900)), ErrProtocolViolation)
	})

	t.Run("resolve before complete", func(t *testing.T) {
		tr := NewTracker(0, splitRanges(t, 2), blackboard.TieBreakOrdered)
		_, err := tr.Resolve()
		assert.Error(t, err)
	})
}

func TestTrackerFirst(t *testing.T) {
	t.Run("stops on any finder", func(t *testing.T) {
		tr := NewTracker(0, splitRanges(t, 3), blackboard.TieBreakFirst)
		require.NoError(t, tr.Record(found(2, 950)))
		assert.True(t, tr.ShouldStop())
	})

	t.Run("conflicting keys", func(t *testing.T) {
		tr := NewTracker(0, splitRanges(t, 3), blackboard.TieBreakFirst)
		require.NoError(t, tr.Record(found(2, 950)))
		err := tr.Record(found(1, 412))
		assert.ErrorIs(t, err, ErrConflictingResult)
	})

	t.Run("lower stopped participant is fine", func(t *testing.T) {
		tr := NewTracker(1, splitRanges(t, 3), blackboard.TieBreakFirst)
		require.NoError(t, tr.Record(finalReport(blackboard.MessageStopped, 0)))
		require.NoError(t, tr.Record(finalReport(blackboard.MessageStopped, 1)))
		require.NoError(t, tr.Record(found(2, 950)))
		res, err := tr.Resolve()
		require.NoError(t, err)
		assert.Equal(t, uint64(950), res.Key)
		assert.Equal(t, transport.ParticipantID(2), res.Finder)
	})

	t.Run("stopped without any finder", func(t *testing.T) {
		tr := NewTracker(0, splitRanges(t, 2), blackboard.TieBreakFirst)
		require.NoError(t, tr.Record(finalReport(blackboard.MessageStopped, 0)))
		require.NoError(t, tr.Record(finalReport(blackboard.MessageExhausted, 1)))
		_, err := tr.Resolve()
		assert.ErrorIs(t, err, ErrProtocolViolation)
	})
}

func TestTrackerViolations(t *testing.T) {
	tr := NewTracker(0, splitRanges(t, 3), blackboard.TieBreakOrdered)

	assert.ErrorIs(t, tr.Record(finalReport(blackboard.MessageWorkRequest, 1)), ErrProtocolViolation)
	assert.ErrorIs(t, tr.Record(finalReport(blackboard.MessageExhausted, 5)), ErrProtocolViolation)

	require.NoError(t, tr.Record(finalReport(blackboard.MessageExhausted, 1)))
	assert.ErrorIs(t, tr.Record(finalReport(blackboard.MessageExhausted, 1)), ErrProtocolViolation, "reports are sent once")
}

func TestBroadcast(t *testing.T) {
	ctx := context.Background()
	net, err := transport.NewNetwork(4)
	require.NoError(t, err)

	eps := make([]transport.Transport, 4)
	for i := range eps {
		eps[i], err = net.Endpoint(transport.ParticipantID(i))
		require.NoError(t, err)
	}

	require.NoError(t, broadcast(ctx, eps[2], transport.Message{Kind: blackboard.MessageStop, Key: 42}))

	for i, ep := range eps {
		msg, ok, err := ep.TryRecv(ctx)
		require.NoError(t, err)
		if i == 2 {
			assert.False(t, ok, "no message to self")
			continue
		}
		require.True(t, ok)
		assert.Equal(t, uint64(42), msg.Key)
		assert.Equal(t, transport.ParticipantID(2), msg.From)

		_, ok, _ = ep.TryRecv(ctx)
		assert.False(t, ok, "exactly one copy per peer")
	}
}
