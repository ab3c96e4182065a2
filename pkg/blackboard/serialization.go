package blackboard

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dyluth/keyhunt/pkg/keyspace"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). Scalar fields are kept
// as individual hash fields so they can be inspected with redis-cli; the
// ciphertext is hex encoded and the optional result is JSON-encoded into a
// single field.

// SessionToHash converts a Session struct to a Redis hash format.
// uint64 fields are written as decimal strings so the full range survives.
func SessionToHash(s *Session) (map[string]interface{}, error) {
	resultJSON := ""
	if s.Result != nil {
		raw, err := json.Marshal(s.Result)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		resultJSON = string(raw)
	}

	hash := map[string]interface{}{
		"id":             s.ID,
		"strategy":       string(s.Strategy),
		"tie_break":      string(s.TieBreak),
		"participants":   s.Participants,
		"unit_size":      strconv.FormatUint(s.UnitSize, 10),
		"lower":          strconv.FormatUint(s.Keyspace.Lower, 10),
		"upper":          strconv.FormatUint(s.Keyspace.Upper, 10),
		"ciphertext":     hex.EncodeToString(s.Ciphertext),
		"phrase":         s.Phrase,
		"status":         string(s.Status),
		"result":         resultJSON,
		"error":          s.Error,
		"created_at_ms":  s.CreatedAtMs,
		"started_at_ms":  s.StartedAtMs,
		"finished_at_ms": s.FinishedAtMs,
	}

	return hash, nil
}

// HashToSession converts a Redis hash to a Session struct.
func HashToSession(hash map[string]string) (*Session, error) {
	participants, err := strconv.Atoi(hash["participants"])
	if err != nil {
		return nil, fmt.Errorf("invalid participants field: %w", err)
	}

	unitSize, err := parseUintField(hash, "unit_size")
	if err != nil {
		return nil, err
	}
	lower, err := parseUintField(hash, "lower")
	if err != nil {
		return nil, err
	}
	upper, err := parseUintField(hash, "upper")
	if err != nil {
		return nil, err
	}

	ciphertext, err := hex.DecodeString(hash["ciphertext"])
	if err != nil {
		return nil, fmt.Errorf("invalid ciphertext field: %w", err)
	}

	var result *SessionResult
	if resultJSON := hash["result"]; resultJSON != "" {
		result = &SessionResult{}
		if err := json.Unmarshal([]byte(resultJSON), result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
	}

	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)
	startedAtMs, _ := strconv.ParseInt(hash["started_at_ms"], 10, 64)
	finishedAtMs, _ := strconv.ParseInt(hash["finished_at_ms"], 10, 64)

	session := &Session{
		ID:           hash["id"],
		Strategy:     Strategy(hash["strategy"]),
		TieBreak:     TieBreak(hash["tie_break"]),
		Participants: participants,
		UnitSize:     unitSize,
		Keyspace:     keyspace.Keyspace{Lower: lower, Upper: upper},
		Ciphertext:   ciphertext,
		Phrase:       hash["phrase"],
		Status:       SessionStatus(hash["status"]),
		Result:       result,
		Error:        hash["error"],
		CreatedAtMs:  createdAtMs,
		StartedAtMs:  startedAtMs,
		FinishedAtMs: finishedAtMs,
	}

	return session, nil
}

func parseUintField(hash map[string]string, field string) (uint64, error) {
	v, err := strconv.ParseUint(hash[field], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s field: %w", field, err)
	}
	return v, nil
}
