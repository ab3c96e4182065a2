package blackboard

import (
	"testing"

	"github.com/dyluth/keyhunt/pkg/keyspace"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSession() *Session {
	return &Session{
		ID:           uuid.New().String(),
		Strategy:     StrategyStatic,
		TieBreak:     TieBreakOrdered,
		Participants: 1,
		Keyspace:     keyspace.Keyspace{Lower: 0, Upper: 9},
		Ciphertext:   make([]byte, 8),
		Phrase:       "prueba",
		Status:       SessionStatusIdle,
	}
}

func TestSessionValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Session)
		wantErr string
	}{
		{name: "valid static session", mutate: func(s *Session) {}},
		{
			name: "valid dynamic session",
			mutate: func(s *Session) {
				s.Strategy = StrategyDynamic
				s.Participants = 2
				s.UnitSize = 10
			},
		},
		{name: "invalid id", mutate: func(s *Session) { s.ID = "not-a-uuid" }, wantErr: "invalid session ID"},
		{name: "unknown strategy", mutate: func(s *Session) { s.Strategy = "random" }, wantErr: "invalid strategy"},
		{name: "unknown tie break", mutate: func(s *Session) { s.TieBreak = "coin" }, wantErr: "invalid tie break"},
		{name: "no participants", mutate: func(s *Session) { s.Participants = 0 }, wantErr: "participants must be >= 1"},
		{
			name: "dynamic without seekers",
			mutate: func(s *Session) {
				s.Strategy = StrategyDynamic
				s.UnitSize = 10
			},
			wantErr: "at least one seeker",
		},
		{
			name: "dynamic without unit size",
			mutate: func(s *Session) {
				s.Strategy = StrategyDynamic
				s.Participants = 3
			},
			wantErr: "unit size must be > 0",
		},
		{name: "inverted keyspace", mutate: func(s *Session) { s.Keyspace = keyspace.Keyspace{Lower: 5, Upper: 4} }, wantErr: "invalid keyspace"},
		{name: "empty phrase", mutate: func(s *Session) { s.Phrase = "" }, wantErr: "phrase cannot be empty"},
		{name: "unknown status", mutate: func(s *Session) { s.Status = "paused" }, wantErr: "invalid status"},
		{name: "found without result", mutate: func(s *Session) { s.Status = SessionStatusFound }, wantErr: "result is missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSession()
			tt.mutate(s)
			err := s.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSessionStatusIsTerminal(t *testing.T) {
	terminal := map[SessionStatus]bool{
		SessionStatusIdle:        false,
		SessionStatusConfiguring: false,
		SessionStatusSearching:   false,
		SessionStatusFound:       true,
		SessionStatusExhausted:   true,
		SessionStatusFailed:      true,
	}
	for status, want := range terminal {
		assert.NoError(t, status.Validate())
		assert.Equalf(t, want, status.IsTerminal(), "status %s", status)
	}
}

func TestMessageValidate(t *testing.T) {
	unit := keyspace.WorkUnit{Seq: 1, Start: 10, End: 19}

	assert.NoError(t, Message{Kind: MessageWorkUnit, From: 0, Unit: &unit}.Validate())
	assert.NoError(t, Message{Kind: MessageFound, From: 3, Key: 12, Seq: 1}.Validate())
	assert.Error(t, Message{Kind: MessageWorkUnit, From: 0}.Validate())
	assert.Error(t, Message{Kind: "hello", From: 0}.Validate())
	assert.Error(t, Message{Kind: MessageAck, From: -1}.Validate())
}

func TestMessageClone(t *testing.T) {
	unit := keyspace.WorkUnit{Seq: 1, Start: 10, End: 19}
	orig := Message{Kind: MessageWorkUnit, From: 0, Unit: &unit, Plaintext: []byte("abc")}

	clone := orig.Clone()
	clone.Unit.End = 99
	clone.Plaintext[0] = 'z'

	assert.Equal(t, uint64(19), orig.Unit.End)
	assert.Equal(t, []byte("abc"), orig.Plaintext)

	assert.Nil(t, Message{Kind: MessageAck}.Clone().Plaintext)
}

func TestIsValidUUID(t *testing.T) {
	assert.True(t, isValidUUID(uuid.New().String()))
	assert.False(t, isValidUUID(""))
	assert.False(t, isValidUUID("abc"))
}
