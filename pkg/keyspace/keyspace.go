// Package keyspace describes the range of candidate keys for a search and
// splits it into disjoint work units.
//
// Both bounds of a Keyspace are inclusive, so the full 64-bit range
// [0, math.MaxUint64] is representable. None of the arithmetic in this package
// computes Upper-Lower+1 directly; ranges are clamped at Upper instead of
// wrapping around.
package keyspace

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidKeyspace is returned when a keyspace has Lower > Upper.
var ErrInvalidKeyspace = errors.New("invalid keyspace")

// Keyspace is an inclusive range of candidate keys.
type Keyspace struct {
	Lower uint64 `json:"lower" yaml:"lower"`
	Upper uint64 `json:"upper" yaml:"upper"`
}

// New returns the keyspace [lower, upper].
func New(lower, upper uint64) (Keyspace, error) {
	ks := Keyspace{Lower: lower, Upper: upper}
	if err := ks.Validate(); err != nil {
		return Keyspace{}, err
	}
	return ks, nil
}

// Full returns the keyspace covering every uint64 value.
func Full() Keyspace {
	return Keyspace{Lower: 0, Upper: math.MaxUint64}
}

// Validate checks the Lower <= Upper invariant.
func (k Keyspace) Validate() error {
	if k.Lower > k.Upper {
		return fmt.Errorf("%w: lower %d > upper %d", ErrInvalidKeyspace, k.Lower, k.Upper)
	}
	return nil
}

// Size returns the number of keys in the keyspace. ok is false only for the
// full range, whose size (2^64) does not fit in a uint64.
func (k Keyspace) Size() (count uint64, ok bool) {
	span := k.Upper - k.Lower
	if span == math.MaxUint64 {
		return 0, false
	}
	return span + 1, true
}

// Contains reports whether key lies within the keyspace.
func (k Keyspace) Contains(key uint64) bool {
	return key >= k.Lower && key <= k.Upper
}

// Unit returns the whole keyspace as a single work unit.
func (k Keyspace) Unit() WorkUnit {
	return WorkUnit{Start: k.Lower, End: k.Upper}
}

func (k Keyspace) String() string {
	return fmt.Sprintf("[%d, %d]", k.Lower, k.Upper)
}

// WorkUnit is a contiguous, inclusive sub-range of a keyspace handed to one
// participant at a time.
//
// Seq is the issuance order for units produced by a Cursor and the owning
// participant index for units produced by Partition. Units with lower Seq
// win cross-unit ties.
type WorkUnit struct {
	Seq   uint64 `json:"seq"`
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
	Empty bool   `json:"empty,omitempty"`
}

// Len returns the number of keys in the unit. A unit spanning the whole
// uint64 range reports 0; callers iterate with Start/End instead.
func (u WorkUnit) Len() uint64 {
	if u.Empty {
		return 0
	}
	return u.End - u.Start + 1
}

// Contains reports whether key lies within the unit.
func (u WorkUnit) Contains(key uint64) bool {
	return !u.Empty && key >= u.Start && key <= u.End
}

// Overlaps reports whether two units share at least one key.
func (u WorkUnit) Overlaps(o WorkUnit) bool {
	if u.Empty || o.Empty {
		return false
	}
	return u.Start <= o.End && o.Start <= u.End
}

func (u WorkUnit) String() string {
	if u.Empty {
		return fmt.Sprintf("#%d (empty)", u.Seq)
	}
	return fmt.Sprintf("#%d [%d, %d]", u.Seq, u.Start, u.End)
}
