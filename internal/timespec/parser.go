// Package timespec parses the --since and --until values accepted by the CLI.
package timespec

import (
	"fmt"
	"time"
)

// Parse converts a time specification into a Unix timestamp in milliseconds.
// A Go duration ("30m", "1h30m") means that long before now; an RFC3339
// timestamp ("2025-10-29T13:00:00Z") is taken as is.
func Parse(spec string) (int64, error) {
	return ParseAt(spec, time.Now())
}

// ParseAt is Parse with durations measured back from now.
func ParseAt(spec string, now time.Time) (int64, error) {
	if spec == "" {
		return 0, fmt.Errorf("empty time specification")
	}

	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		return t.UnixMilli(), nil
	}

	d, err := time.ParseDuration(spec)
	if err != nil {
		return 0, fmt.Errorf("invalid time specification: %s (use duration like '1h30m' or RFC3339 like '2025-10-29T13:00:00Z')", spec)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid time specification: %s (duration must not be negative)", spec)
	}
	return now.Add(-d).UnixMilli(), nil
}

// ParseRange parses --since and --until. Zero means no bound on that side.
// since must be before until when both are given.
func ParseRange(since, until string) (sinceMs, untilMs int64, err error) {
	now := time.Now()

	if since != "" {
		if sinceMs, err = ParseAt(since, now); err != nil {
			return 0, 0, fmt.Errorf("invalid --since: %w", err)
		}
	}
	if until != "" {
		if untilMs, err = ParseAt(until, now); err != nil {
			return 0, 0, fmt.Errorf("invalid --until: %w", err)
		}
	}

	if sinceMs > 0 && untilMs > 0 && sinceMs >= untilMs {
		return 0, 0, fmt.Errorf("--since must be before --until")
	}
	return sinceMs, untilMs, nil
}
