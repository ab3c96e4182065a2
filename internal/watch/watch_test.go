package watch

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/keyhunt/pkg/blackboard"
	"github.com/dyluth/keyhunt/pkg/keyspace"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupClient(t *testing.T) *blackboard.Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := blackboard.NewClient(&redis.Options{Addr: mr.Addr()}, "test-ns")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func newSession(status blackboard.SessionStatus) *blackboard.Session {
	return &blackboard.Session{
		ID:           uuid.New().String(),
		Strategy:     blackboard.StrategyStatic,
		TieBreak:     blackboard.TieBreakOrdered,
		Participants: 2,
		Keyspace:     keyspace.Keyspace{Lower: 0, Upper: 9},
		Ciphertext:   make([]byte, 8),
		Phrase:       "prueba",
		Status:       status,
	}
}

func TestPollForStatus(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()

	t.Run("returns immediately when already done", func(t *testing.T) {
		s := newSession(blackboard.SessionStatusExhausted)
		require.NoError(t, client.CreateSession(ctx, s))

		got, err := PollForStatus(ctx, client, s.ID, Terminal, 2*time.Second)
		require.NoError(t, err)
		assert.Equal(t, blackboard.SessionStatusExhausted, got.Status)
	})

	t.Run("waits for the session to appear and start", func(t *testing.T) {
		s := newSession(blackboard.SessionStatusConfiguring)
		go func() {
			time.Sleep(300 * time.Millisecond)
			_ = client.CreateSession(ctx, s)
			time.Sleep(300 * time.Millisecond)
			s.Status = blackboard.SessionStatusSearching
			_ = client.UpdateSession(ctx, s)
		}()

		got, err := PollForStatus(ctx, client, s.ID, Started, 5*time.Second)
		require.NoError(t, err)
		assert.Equal(t, blackboard.SessionStatusSearching, got.Status)
	})

	t.Run("times out", func(t *testing.T) {
		s := newSession(blackboard.SessionStatusSearching)
		require.NoError(t, client.CreateSession(ctx, s))

		_, err := PollForStatus(ctx, client, s.ID, Terminal, 500*time.Millisecond)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timeout")
	})

	t.Run("honours context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := PollForStatus(cctx, client, uuid.New().String(), Terminal, time.Second)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestPollForMembers(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()
	id := uuid.New().String()

	go func() {
		for p := 0; p < 3; p++ {
			time.Sleep(100 * time.Millisecond)
			_, _ = client.JoinSession(ctx, id, blackboard.ParticipantID(p))
		}
	}()

	require.NoError(t, PollForMembers(ctx, client, id, 3, 5*time.Second))

	err := PollForMembers(ctx, client, id, 4, 500*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 of 4 joined")
}

func TestStatusPredicates(t *testing.T) {
	assert.False(t, Started(blackboard.SessionStatusConfiguring))
	assert.True(t, Started(blackboard.SessionStatusSearching))
	assert.True(t, Started(blackboard.SessionStatusFailed))
	assert.False(t, Terminal(blackboard.SessionStatusSearching))
	assert.True(t, Terminal(blackboard.SessionStatusFound))
}
