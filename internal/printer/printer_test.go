package printer

import (
	"bytes"
	"testing"
	"time"

	"github.com/dyluth/keyhunt/internal/coord"
	"github.com/dyluth/keyhunt/pkg/blackboard"
	"github.com/dyluth/keyhunt/pkg/keyspace"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noColor(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func TestResult(t *testing.T) {
	noColor(t)

	t.Run("found", func(t *testing.T) {
		var buf bytes.Buffer
		Result(&buf, coord.Result{
			Found:     true,
			Key:       536,
			Plaintext: []byte("attack at dawn\x00\x00"),
			Finder:    2,
			Seq:       5,
		}, 1500*time.Millisecond)

		out := buf.String()
		assert.Contains(t, out, "key found: 536, decrypted: attack at dawn\n")
		assert.Contains(t, out, "participant 2 in unit 5")
		assert.Contains(t, out, "elapsed: 1.500s")
	})

	t.Run("exhausted", func(t *testing.T) {
		var buf bytes.Buffer
		Result(&buf, coord.Result{}, 20*time.Millisecond)
		assert.Equal(t, "no key found in the given space\nelapsed: 0.020s\n", buf.String())
	})
}

func TestPlaintext(t *testing.T) {
	assert.Equal(t, "hello", Plaintext([]byte("hello\x00\x00\x00")))
	assert.Equal(t, "", Plaintext(nil))
}

func TestSession(t *testing.T) {
	noColor(t)

	s := &blackboard.Session{
		ID:           "0f8fad5b-d9cb-469f-a165-70867728950e",
		Strategy:     blackboard.StrategyDynamic,
		TieBreak:     blackboard.TieBreakOrdered,
		Participants: 4,
		UnitSize:     100,
		Keyspace:     keyspace.Keyspace{Lower: 0, Upper: 999},
		Phrase:       "es una prueba de",
		Status:       blackboard.SessionStatusFound,
		Result:       &blackboard.SessionResult{Key: 536, Plaintext: []byte("Esta es una prueba de\x00"), Finder: 1, Seq: 5},
		CreatedAtMs:  1000,
		StartedAtMs:  2000,
		FinishedAtMs: 4500,
	}

	var buf bytes.Buffer
	Session(&buf, s)
	out := buf.String()
	assert.Contains(t, out, "Session 0f8fad5b-d9cb-469f-a165-70867728950e")
	assert.Contains(t, out, "status:       found")
	assert.Contains(t, out, "unit size:    100")
	assert.Contains(t, out, "elapsed:      2.500s")
	assert.Contains(t, out, "key:          536 (participant 1, unit 5)")
	assert.Contains(t, out, "decrypted:    Esta es una prueba de\n")
	assert.NotContains(t, out, "error:")

	s.Strategy = blackboard.StrategyStatic
	s.Status = blackboard.SessionStatusFailed
	s.Result = nil
	s.Error = "participant 2: protocol violation"
	buf.Reset()
	Session(&buf, s)
	out = buf.String()
	assert.NotContains(t, out, "unit size")
	assert.Contains(t, out, "error:        participant 2: protocol violation")
}

func TestError(t *testing.T) {
	t.Run("returns error with title", func(t *testing.T) {
		err := Error("Test Error", "This is a test error", []string{})
		require.Error(t, err)
		require.Equal(t, "Test Error", err.Error())
	})

	t.Run("returns error with title for multiple suggestions", func(t *testing.T) {
		err := Error("Test Error", "Explanation", []string{
			"First option",
			"Second option",
		})
		require.Error(t, err)
		require.Equal(t, "Test Error", err.Error())
	})
}

func TestErrorWithContext(t *testing.T) {
	context := map[string]string{"Session": "0f8fad5b", "Namespace": "default"}
	err := ErrorWithContext("Test Error", "Explanation", context, []string{"Fix it"})
	require.Error(t, err)
	require.Equal(t, "Test Error", err.Error())
}

func TestSessionTable(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, 0, SessionTable(&buf, nil, "lab"))
	assert.Equal(t, "No sessions found in namespace 'lab'\n", buf.String())

	buf.Reset()
	sessions := []*blackboard.Session{{
		ID:           "0f8fad5b-d9cb-469f-a165-70867728950e",
		Strategy:     blackboard.StrategyStatic,
		Participants: 3,
		Keyspace:     keyspace.Keyspace{Lower: 0, Upper: 999},
		Status:       blackboard.SessionStatusSearching,
	}}
	assert.Equal(t, 1, SessionTable(&buf, sessions, "lab"))
	out := buf.String()
	assert.Contains(t, out, "0f8fad5b   searching  static   3")
	assert.NotContains(t, out, "0f8fad5b-d9cb")
	assert.Contains(t, out, "1 session found")
}

func TestSessionJSONL(t *testing.T) {
	var buf bytes.Buffer
	sessions := []*blackboard.Session{
		{ID: "a", Status: blackboard.SessionStatusFound},
		{ID: "b", Status: blackboard.SessionStatusFailed},
	}
	require.NoError(t, SessionJSONL(&buf, sessions))
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Contains(t, string(lines[0]), `"id":"a"`)
	assert.Contains(t, string(lines[1]), `"status":"failed"`)
}
