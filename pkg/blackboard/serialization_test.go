package blackboard

import (
	"math"
	"strconv"
	"testing"

	"github.com/dyluth/keyhunt/pkg/keyspace"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// toStringHash mimics what Redis hands back from HGETALL.
func toStringHash(t *testing.T, hash map[string]interface{}) map[string]string {
	t.Helper()
	out := make(map[string]string, len(hash))
	for k, v := range hash {
		switch val := v.(type) {
		case string:
			out[k] = val
		case int:
			out[k] = strconv.FormatInt(int64(val), 10)
		case int64:
			out[k] = strconv.FormatInt(val, 10)
		default:
			t.Fatalf("unexpected hash value type %T for %s", v, k)
		}
	}
	return out
}

func TestSessionRoundTrip(t *testing.T) {
	s := &Session{
		ID:           uuid.New().String(),
		Strategy:     StrategyStatic,
		TieBreak:     TieBreakFirst,
		Participants: 8,
		UnitSize:     math.MaxUint64,
		Keyspace:     keyspace.Keyspace{Lower: 1 << 63, Upper: math.MaxUint64},
		Ciphertext:   []byte{1, 2, 3, 4, 5, 6, 7, 8},
		Phrase:       "es una prueba de",
		Status:       SessionStatusFound,
		Result:       &SessionResult{Key: 1<<63 + 12, Plaintext: []byte("text"), Finder: 7, Seq: 7},
		CreatedAtMs:  1700000000000,
		StartedAtMs:  1700000000100,
		FinishedAtMs: 1700000009100,
	}

	hash, err := SessionToHash(s)
	require.NoError(t, err)

	got, err := HashToSession(toStringHash(t, hash))
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestSessionRoundTrip_NoResult(t *testing.T) {
	s := validSession()
	s.Status = SessionStatusFailed
	s.Error = "conflicting results"

	hash, err := SessionToHash(s)
	require.NoError(t, err)
	assert.Equal(t, "", hash["result"])

	got, err := HashToSession(toStringHash(t, hash))
	require.NoError(t, err)
	assert.Nil(t, got.Result)
	assert.Equal(t, "conflicting results", got.Error)
}

func TestHashToSession_Malformed(t *testing.T) {
	base := func() map[string]string {
		hash, err := SessionToHash(validSession())
		require.NoError(t, err)
		return toStringHash(t, hash)
	}

	tests := []struct {
		field string
		value string
		want  string
	}{
		{"participants", "many", "invalid participants field"},
		{"unit_size", "-1", "invalid unit_size field"},
		{"lower", "", "invalid lower field"},
		{"upper", "18446744073709551616", "invalid upper field"},
		{"ciphertext", "zz", "invalid ciphertext field"},
		{"result", "{not json", "failed to unmarshal result"},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			hash := base()
			hash[tt.field] = tt.value
			_, err := HashToSession(hash)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
