package transport

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/keyhunt/pkg/blackboard"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisEndpoints(t *testing.T, n int) []*RedisEndpoint {
	t.Helper()
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client, err := blackboard.NewClient(&redis.Options{Addr: mr.Addr()}, "test-ns")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	sessionID := uuid.New().String()
	eps := make([]*RedisEndpoint, n)
	for i := range eps {
		eps[i], err = NewRedisEndpoint(client, sessionID, ParticipantID(i), n)
		require.NoError(t, err)
	}
	return eps
}

func TestNewRedisEndpoint(t *testing.T) {
	_, err := NewRedisEndpoint(nil, "", 0, 1)
	assert.Error(t, err)
	_, err = NewRedisEndpoint(nil, "s", 0, 0)
	assert.Error(t, err)
	_, err = NewRedisEndpoint(nil, "s", 2, 2)
	assert.ErrorIs(t, err, ErrUnknownParticipant)
}

func TestRedisEndpoint(t *testing.T) {
	ctx := context.Background()
	eps := setupRedisEndpoints(t, 3)
	var _ Transport = eps[0]

	t.Run("send and recv", func(t *testing.T) {
		require.NoError(t, eps[1].Send(ctx, 0, Message{Kind: blackboard.MessageWorkRequest}))
		msg, err := eps[0].Recv(ctx)
		require.NoError(t, err)
		assert.Equal(t, blackboard.MessageWorkRequest, msg.Kind)
		assert.Equal(t, ParticipantID(1), msg.From)
	})

	t.Run("try recv", func(t *testing.T) {
		_, ok, err := eps[2].TryRecv(ctx)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, eps[0].Send(ctx, 2, Message{Kind: blackboard.MessageStop, Key: 537, Plaintext: []byte("ok")}))
		msg, ok, err := eps[2].TryRecv(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, uint64(537), msg.Key)
		assert.Equal(t, []byte("ok"), msg.Plaintext)
	})

	t.Run("recv honours context", func(t *testing.T) {
		cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, err := eps[1].Recv(cctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("unknown recipient", func(t *testing.T) {
		assert.ErrorIs(t, eps[0].Send(ctx, 5, Message{Kind: blackboard.MessageAck}), ErrUnknownParticipant)
	})

	t.Run("closed endpoint", func(t *testing.T) {
		require.NoError(t, eps[2].Close())
		require.NoError(t, eps[2].Close())
		assert.ErrorIs(t, eps[2].Send(ctx, 0, Message{Kind: blackboard.MessageAck}), ErrClosed)
		_, err := eps[2].Recv(ctx)
		assert.ErrorIs(t, err, ErrClosed)
		_, _, err = eps[2].TryRecv(ctx)
		assert.ErrorIs(t, err, ErrClosed)
	})
}
