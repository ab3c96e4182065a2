// Package printer formats keyhunt's terminal output: search reports, session
// records and the colored error blocks shown before the CLI exits.
package printer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dyluth/keyhunt/internal/coord"
	"github.com/dyluth/keyhunt/pkg/blackboard"
	"github.com/fatih/color"
)

func init() {
	// Force color output even when not connected to TTY
	// Users can disable with NO_COLOR environment variable
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	bold   = color.New(color.Bold)
)

// Success prints a success message in green with a checkmark prefix
func Success(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		green.Printf("✓ %s", msg)
	} else {
		green.Print(msg)
	}
}

// Warning prints a warning message in yellow with a warning emoji prefix
func Warning(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "⚠️") {
		yellow.Printf("⚠️  %s", msg)
	} else {
		yellow.Print(msg)
	}
}

// Step prints a step message with emphasis (used in multi-step operations)
func Step(format string, a ...any) {
	cyan.Printf("→ %s", fmt.Sprintf(format, a...))
}

// Result writes the outcome of a search and how long it took.
// The decrypted text is printed without its zero padding.
func Result(w io.Writer, res coord.Result, elapsed time.Duration) {
	if res.Found {
		green.Fprintf(w, "key found: %d, decrypted: %s\n", res.Key, Plaintext(res.Plaintext))
		fmt.Fprintf(w, "  found by participant %d in unit %d\n", res.Finder, res.Seq)
	} else {
		yellow.Fprintln(w, "no key found in the given space")
	}
	fmt.Fprintf(w, "elapsed: %.3fs\n", elapsed.Seconds())
}

// Plaintext strips the trailing zero padding added before encryption.
func Plaintext(padded []byte) string {
	return strings.TrimRight(string(padded), "\x00")
}

// Session writes a human-readable view of a session record.
func Session(w io.Writer, s *blackboard.Session) {
	bold.Fprintf(w, "Session %s\n", s.ID)
	fmt.Fprintf(w, "  status:       %s\n", statusColor(s.Status).Sprint(s.Status))
	fmt.Fprintf(w, "  strategy:     %s (tie break: %s)\n", s.Strategy, s.TieBreak)
	fmt.Fprintf(w, "  participants: %d\n", s.Participants)
	if s.Strategy == blackboard.StrategyDynamic {
		fmt.Fprintf(w, "  unit size:    %d\n", s.UnitSize)
	}
	fmt.Fprintf(w, "  keyspace:     %s\n", s.Keyspace)
	fmt.Fprintf(w, "  phrase:       %q\n", s.Phrase)

	if s.CreatedAtMs > 0 {
		fmt.Fprintf(w, "  created:      %s\n", time.UnixMilli(s.CreatedAtMs).Format(time.RFC3339))
	}
	if s.StartedAtMs > 0 && s.FinishedAtMs >= s.StartedAtMs {
		elapsed := time.Duration(s.FinishedAtMs-s.StartedAtMs) * time.Millisecond
		fmt.Fprintf(w, "  elapsed:      %.3fs\n", elapsed.Seconds())
	}

	if s.Result != nil {
		fmt.Fprintf(w, "  key:          %d (participant %d, unit %d)\n", s.Result.Key, s.Result.Finder, s.Result.Seq)
		fmt.Fprintf(w, "  decrypted:    %s\n", Plaintext(s.Result.Plaintext))
	}
	if s.Error != "" {
		fmt.Fprintf(w, "  error:        %s\n", red.Sprint(s.Error))
	}
}

func statusColor(status blackboard.SessionStatus) *color.Color {
	switch status {
	case blackboard.SessionStatusFound:
		return green
	case blackboard.SessionStatusFailed:
		return red
	case blackboard.SessionStatusExhausted:
		return yellow
	default:
		return cyan
	}
}

// Error creates a formatted error message with title, explanation, and suggestions
// Prints the formatted error to stderr with colors and returns a simple error for Cobra
func Error(title string, explanation string, suggestions []string) error {
	return ErrorWithContext(title, explanation, nil, suggestions)
}

// ErrorWithContext creates a formatted error with context details
// Prints the formatted error to stderr with colors and returns a simple error for Cobra
func ErrorWithContext(title string, explanation string, context map[string]string, suggestions []string) error {
	red.Fprintf(os.Stderr, "%s\n\n", title)

	if explanation != "" {
		fmt.Fprintf(os.Stderr, "%s\n", explanation)
	}

	if len(context) > 0 {
		fmt.Fprintf(os.Stderr, "\n")
		for key, value := range context {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", key, value)
		}
	}

	if len(suggestions) > 0 {
		fmt.Fprintf(os.Stderr, "\n")
		if len(suggestions) == 1 {
			fmt.Fprintf(os.Stderr, "%s\n", suggestions[0])
		} else {
			fmt.Fprintf(os.Stderr, "Either:\n")
			for i, suggestion := range suggestions {
				fmt.Fprintf(os.Stderr, "  %d. %s\n", i+1, suggestion)
			}
		}
	}

	// Return simple error for Cobra (won't be printed due to SilenceErrors)
	return fmt.Errorf("%s", title)
}

// SessionTable writes sessions as a fixed-width table and returns how many
// rows were written.
func SessionTable(w io.Writer, sessions []*blackboard.Session, namespace string) int {
	if len(sessions) == 0 {
		fmt.Fprintf(w, "No sessions found in namespace '%s'\n", namespace)
		return 0
	}

	fmt.Fprintf(w, "%-10s %-10s %-8s %-6s %s\n", "ID", "STATUS", "STRATEGY", "PARTS", "KEYSPACE")
	fmt.Fprintf(w, "%-10s %-10s %-8s %-6s %s\n", "----------", "----------", "--------", "------", "--------------------")
	for _, s := range sessions {
		fmt.Fprintf(w, "%-10s %-10s %-8s %-6d %s\n", shortID(s.ID), s.Status, s.Strategy, s.Participants, s.Keyspace)
	}

	noun := "session"
	if len(sessions) != 1 {
		noun = "sessions"
	}
	fmt.Fprintf(w, "\n%d %s found\n", len(sessions), noun)
	return len(sessions)
}

// SessionJSONL writes one compact JSON object per session.
func SessionJSONL(w io.Writer, sessions []*blackboard.Session) error {
	for _, s := range sessions {
		data, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to marshal session to JSON: %w", err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// shortID returns the first 8 characters of a session UUID.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
