// Package filter selects sessions for listing.
package filter

import (
	"github.com/dyluth/keyhunt/pkg/blackboard"
)

// Criteria defines filtering criteria for sessions.
// All filters are ANDed together; zero values match everything.
type Criteria struct {
	SinceTimestampMs int64                      // created at or after, 0 = no filter
	UntilTimestampMs int64                      // created at or before, 0 = no filter
	Statuses         []blackboard.SessionStatus // any of, empty = no filter
	Strategy         blackboard.Strategy        // exact match, empty = no filter
}

// Matches returns true if the session matches all filter criteria.
func (c *Criteria) Matches(s *blackboard.Session) bool {
	if c.SinceTimestampMs > 0 && s.CreatedAtMs < c.SinceTimestampMs {
		return false
	}
	if c.UntilTimestampMs > 0 && s.CreatedAtMs > c.UntilTimestampMs {
		return false
	}

	if len(c.Statuses) > 0 {
		matched := false
		for _, st := range c.Statuses {
			if s.Status == st {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if c.Strategy != "" && s.Strategy != c.Strategy {
		return false
	}

	return true
}

// Apply returns the sessions that match, in their original order.
func (c *Criteria) Apply(sessions []*blackboard.Session) []*blackboard.Session {
	out := sessions[:0:0]
	for _, s := range sessions {
		if c.Matches(s) {
			out = append(out, s)
		}
	}
	return out
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return c.SinceTimestampMs > 0 ||
		c.UntilTimestampMs > 0 ||
		len(c.Statuses) > 0 ||
		c.Strategy != ""
}
