package resolver

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/keyhunt/pkg/blackboard"
	"github.com/dyluth/keyhunt/pkg/keyspace"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestClient(t *testing.T) *blackboard.Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := blackboard.NewClient(&redis.Options{Addr: mr.Addr()}, "test-ns")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func createSession(t *testing.T, client *blackboard.Client, id string) {
	t.Helper()
	err := client.CreateSession(context.Background(), &blackboard.Session{
		ID:           id,
		Strategy:     blackboard.StrategyStatic,
		TieBreak:     blackboard.TieBreakOrdered,
		Participants: 2,
		Keyspace:     keyspace.Keyspace{Lower: 0, Upper: 999},
		Ciphertext:   []byte{1, 2, 3, 4, 5, 6, 7, 8},
		Phrase:       "prueba",
		Status:       blackboard.SessionStatusConfiguring,
	})
	require.NoError(t, err)
}

func TestResolveSessionID(t *testing.T) {
	ctx := context.Background()
	client := setupTestClient(t)

	const (
		unique = "0f8fad5b-d9cb-469f-a165-70867728950e"
		twinA  = "7c9e6679-7425-40de-944b-e07fc1f90ae7"
		twinB  = "7c9e6679-aaaa-40de-944b-e07fc1f90ae7"
	)
	for _, id := range []string{unique, twinA, twinB} {
		createSession(t, client, id)
	}
	// Sub-keys must not count as extra matches.
	_, err := client.JoinSession(ctx, unique, 0)
	require.NoError(t, err)

	t.Run("full UUID", func(t *testing.T) {
		id, err := ResolveSessionID(ctx, client, unique)
		require.NoError(t, err)
		assert.Equal(t, unique, id)
	})

	t.Run("unknown full UUID", func(t *testing.T) {
		_, err := ResolveSessionID(ctx, client, "9b2c4f31-1111-4b8e-9a55-0c6d8f7e2a10")
		assert.True(t, IsNotFoundError(err))
	})

	t.Run("unique prefix", func(t *testing.T) {
		id, err := ResolveSessionID(ctx, client, "0f8fad")
		require.NoError(t, err)
		assert.Equal(t, unique, id)
	})

	t.Run("prefix too short", func(t *testing.T) {
		_, err := ResolveSessionID(ctx, client, "0f8fa")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at least 6 characters")
	})

	t.Run("no match", func(t *testing.T) {
		_, err := ResolveSessionID(ctx, client, "ffffff")
		require.Error(t, err)
		assert.True(t, IsNotFoundError(err))
		assert.False(t, IsAmbiguousError(err))
		assert.Equal(t, "no sessions found matching 'ffffff'", err.Error())
	})

	t.Run("ambiguous", func(t *testing.T) {
		_, err := ResolveSessionID(ctx, client, "7c9e6679")
		require.Error(t, err)
		require.True(t, IsAmbiguousError(err))
		ambiguous := err.(*AmbiguousError)
		assert.Equal(t, []string{twinA, twinB}, ambiguous.Matches)
	})
}

func TestFormatAmbiguousError(t *testing.T) {
	matches := make([]string, 12)
	for i := range matches {
		matches[i] = fmt.Sprintf("abcdef00-0000-4000-8000-%012d", i)
	}

	msg := FormatAmbiguousError(&AmbiguousError{ShortID: "abcdef", Matches: matches})
	assert.Contains(t, msg, "matches 12 sessions")
	assert.Contains(t, msg, matches[9])
	assert.NotContains(t, msg, matches[10])
	assert.Contains(t, msg, "...and 2 more")
	assert.True(t, strings.HasSuffix(msg, "uniquely identify the session."))

	short := FormatAmbiguousError(&AmbiguousError{ShortID: "abcdef", Matches: matches[:2]})
	assert.NotContains(t, short, "more")
}
