package blackboard

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dyluth/keyhunt/pkg/keyspace"
)

// Unit ledger utilities
//
// Issued work units are stored in Redis as a ZSET where:
// - Key: keyhunt:{namespace}:session:{session_id}:units
// - Members: "{start}-{end}" in decimal
// - Score: the unit's issue sequence (as float64)
//
// Scores are exact for sequences below 2^53, far beyond any reachable issue count.

// maxExactScore is the largest sequence a float64 score represents exactly.
const maxExactScore = 1 << 53

// UnitScore converts a unit issue sequence to a Redis ZSET score.
func UnitScore(seq uint64) float64 {
	return float64(seq)
}

// SeqFromScore converts a Redis ZSET score back to a unit issue sequence.
func SeqFromScore(score float64) uint64 {
	if score < 0 || math.IsNaN(score) {
		return 0
	}
	return uint64(score)
}

// unitMember encodes the bounds of a unit as a ZSET member.
func unitMember(start, end uint64) string {
	return strconv.FormatUint(start, 10) + "-" + strconv.FormatUint(end, 10)
}

// parseUnitMember decodes a ZSET member and score back into a work unit.
func parseUnitMember(member string, score float64) (keyspace.WorkUnit, error) {
	startStr, endStr, ok := strings.Cut(member, "-")
	if !ok {
		return keyspace.WorkUnit{}, fmt.Errorf("malformed unit member %q", member)
	}
	start, err := strconv.ParseUint(startStr, 10, 64)
	if err != nil {
		return keyspace.WorkUnit{}, fmt.Errorf("invalid unit start in %q: %w", member, err)
	}
	end, err := strconv.ParseUint(endStr, 10, 64)
	if err != nil {
		return keyspace.WorkUnit{}, fmt.Errorf("invalid unit end in %q: %w", member, err)
	}
	return keyspace.WorkUnit{Seq: SeqFromScore(score), Start: start, End: end}, nil
}
