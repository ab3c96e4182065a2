package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
)

// ParticipantEnv holds the runtime configuration of a participant process
// joining a distributed session, loaded from environment variables.
type ParticipantEnv struct {
	// SessionID is the session to join (from KEYHUNT_SESSION)
	SessionID string

	// ParticipantID is this process's participant ID (from KEYHUNT_PARTICIPANT_ID)
	ParticipantID int

	// RedisURL is the Redis connection string (from REDIS_URL)
	RedisURL string

	// Namespace scopes blackboard keys (from KEYHUNT_NAMESPACE, default "default")
	Namespace string
}

// LoadParticipantEnv reads and validates the participant environment.
// Every error is detected before any connection is opened.
func LoadParticipantEnv() (*ParticipantEnv, error) {
	env := &ParticipantEnv{
		SessionID: os.Getenv("KEYHUNT_SESSION"),
		RedisURL:  os.Getenv("REDIS_URL"),
		Namespace: os.Getenv("KEYHUNT_NAMESPACE"),
	}

	idStr := os.Getenv("KEYHUNT_PARTICIPANT_ID")
	if idStr == "" {
		return nil, fmt.Errorf("KEYHUNT_PARTICIPANT_ID environment variable is required")
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse KEYHUNT_PARTICIPANT_ID as integer: %w", err)
	}
	env.ParticipantID = id

	if env.Namespace == "" {
		env.Namespace = DefaultNamespace
	}

	if err := env.Validate(); err != nil {
		return nil, err
	}
	return env, nil
}

// Validate checks that all required fields are present and valid.
// Returns the first validation error encountered.
func (e *ParticipantEnv) Validate() error {
	if e.SessionID == "" {
		return fmt.Errorf("KEYHUNT_SESSION environment variable is required")
	}
	if _, err := uuid.Parse(e.SessionID); err != nil {
		return fmt.Errorf("KEYHUNT_SESSION must be a session UUID: %w", err)
	}

	if e.ParticipantID < 0 {
		return fmt.Errorf("KEYHUNT_PARTICIPANT_ID must be >= 0, got %d", e.ParticipantID)
	}

	if e.RedisURL == "" {
		return fmt.Errorf("REDIS_URL environment variable is required")
	}

	if e.Namespace == "" {
		return fmt.Errorf("KEYHUNT_NAMESPACE cannot be empty")
	}

	return nil
}
