package keyspace

import (
	"errors"
	"fmt"
)

// ErrInvalidUnitSize is returned by NewCursor for a zero unit size.
var ErrInvalidUnitSize = errors.New("unit size must be greater than zero")

// Partition splits ks into n disjoint static ranges, one per participant, in
// ascending order. Every range receives floor((Upper-Lower)/n) keys and the
// last range absorbs the remainder.
//
// When ks holds fewer keys than n, the first participants own one key each
// and the rest own empty units.
func Partition(ks Keyspace, n int) ([]WorkUnit, error) {
	if err := ks.Validate(); err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, fmt.Errorf("participant count must be at least 1, got %d", n)
	}

	units := make([]WorkUnit, n)
	parts := uint64(n)
	span := ks.Upper - ks.Lower // count-1, never overflows

	if span < parts-1 {
		// Fewer keys than participants.
		for i := range units {
			idx := uint64(i)
			if idx <= span {
				key := ks.Lower + idx
				units[i] = WorkUnit{Seq: idx, Start: key, End: key}
			} else {
				units[i] = WorkUnit{Seq: idx, Empty: true}
			}
		}
		return units, nil
	}

	base := span / parts
	if base == 0 {
		// span == parts-1: exactly one key each.
		base = 1
	}
	for i := range units {
		idx := uint64(i)
		start := ks.Lower + idx*base
		end := start + base - 1
		if i == n-1 {
			end = ks.Upper
		}
		units[i] = WorkUnit{Seq: idx, Start: start, End: end}
	}
	return units, nil
}

// Cursor hands out bounded-size units from the front of a keyspace.
//
// A Cursor is owned by a single goroutine (the dispatcher) and is not safe
// for concurrent use.
type Cursor struct {
	ks       Keyspace
	unitSize uint64
	next     uint64
	seq      uint64
	done     bool
}

// NewCursor returns a cursor positioned at ks.Lower.
func NewCursor(ks Keyspace, unitSize uint64) (*Cursor, error) {
	if err := ks.Validate(); err != nil {
		return nil, err
	}
	if unitSize == 0 {
		return nil, ErrInvalidUnitSize
	}
	return &Cursor{ks: ks, unitSize: unitSize, next: ks.Lower}, nil
}

// Next returns the next unit and advances the cursor past it. ok is false
// once the keyspace is exhausted; a unit is never returned twice.
func (c *Cursor) Next() (unit WorkUnit, ok bool) {
	if c.done {
		return WorkUnit{}, false
	}

	start := c.next
	end := c.ks.Upper
	if c.ks.Upper-start >= c.unitSize {
		end = start + c.unitSize - 1
	}

	unit = WorkUnit{Seq: c.seq, Start: start, End: end}
	c.seq++
	if end == c.ks.Upper {
		c.done = true
	} else {
		c.next = end + 1
	}
	return unit, true
}

// Exhausted reports whether every key has been issued.
func (c *Cursor) Exhausted() bool {
	return c.done
}

// Issued returns the number of units handed out so far.
func (c *Cursor) Issued() uint64 {
	return c.seq
}
