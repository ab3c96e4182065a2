package blackboard

import (
	"math"
	"testing"

	"github.com/dyluth/keyhunt/pkg/keyspace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitScore(t *testing.T) {
	for _, seq := range []uint64{0, 1, 100, 1 << 40, maxExactScore - 1} {
		assert.Equal(t, seq, SeqFromScore(UnitScore(seq)))
	}
	assert.Equal(t, uint64(0), SeqFromScore(-1))
	assert.Equal(t, uint64(0), SeqFromScore(math.NaN()))
}

func TestParseUnitMember(t *testing.T) {
	u, err := parseUnitMember(unitMember(10, math.MaxUint64), 4)
	require.NoError(t, err)
	assert.Equal(t, keyspace.WorkUnit{Seq: 4, Start: 10, End: math.MaxUint64}, u)

	for _, bad := range []string{"", "10", "a-5", "5-b"} {
		_, err := parseUnitMember(bad, 0)
		assert.Errorf(t, err, "member %q", bad)
	}
}
