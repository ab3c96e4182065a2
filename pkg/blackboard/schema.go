package blackboard

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced so that multiple keyhunt
// deployments can safely coexist on a single Redis server.
//
// Key pattern: keyhunt:{namespace}:session:{uuid}[:{sub}]
// Channel pattern: keyhunt:{namespace}:session_events

// SessionKey returns the Redis key for a session record.
// Pattern: keyhunt:{namespace}:session:{session_id}
func SessionKey(namespace, sessionID string) string {
	return fmt.Sprintf("keyhunt:%s:session:%s", namespace, sessionID)
}

// SessionScanPattern returns the SCAN pattern matching every session record
// and its sub-keys in a namespace.
// Pattern: keyhunt:{namespace}:session:*
func SessionScanPattern(namespace string) string {
	return fmt.Sprintf("keyhunt:%s:session:*", namespace)
}

// MembersKey returns the Redis key for the set of participants that joined a session.
// Pattern: keyhunt:{namespace}:session:{session_id}:members
func MembersKey(namespace, sessionID string) string {
	return fmt.Sprintf("keyhunt:%s:session:%s:members", namespace, sessionID)
}

// InboxKey returns the Redis key for a participant's mailbox list.
// Pattern: keyhunt:{namespace}:session:{session_id}:inbox:{participant}
func InboxKey(namespace, sessionID string, participant ParticipantID) string {
	return fmt.Sprintf("keyhunt:%s:session:%s:inbox:%d", namespace, sessionID, participant)
}

// UnitsKey returns the Redis key for the ZSET of issued work units.
// Pattern: keyhunt:{namespace}:session:{session_id}:units
func UnitsKey(namespace, sessionID string) string {
	return fmt.Sprintf("keyhunt:%s:session:%s:units", namespace, sessionID)
}

// SessionEventsChannel returns the Pub/Sub channel name for session updates.
// Pattern: keyhunt:{namespace}:session_events
func SessionEventsChannel(namespace string) string {
	return fmt.Sprintf("keyhunt:%s:session_events", namespace)
}
