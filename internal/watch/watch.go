// Package watch waits on session state held on the blackboard.
package watch

import (
	"context"
	"fmt"
	"time"

	"github.com/dyluth/keyhunt/pkg/blackboard"
)

// PollInterval is how often the blackboard is re-read.
const PollInterval = 200 * time.Millisecond

// PollForStatus polls a session until done reports true for its status.
// A session that does not exist yet is waited for.
// Returns the session or an error if the timeout elapses first.
func PollForStatus(ctx context.Context, client *blackboard.Client, sessionID string, done func(blackboard.SessionStatus) bool, timeout time.Duration) (*blackboard.Session, error) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		session, err := client.GetSession(ctx, sessionID)
		switch {
		case err == nil:
			if done(session.Status) {
				return session, nil
			}
		case !blackboard.IsNotFound(err):
			return nil, fmt.Errorf("failed to query session: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timeoutCh:
			return nil, fmt.Errorf("timeout waiting for session %s after %v", sessionID, timeout)
		case <-ticker.C:
		}
	}
}

// PollForMembers polls until at least n participants joined the session.
func PollForMembers(ctx context.Context, client *blackboard.Client, sessionID string, n int64, timeout time.Duration) error {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	timeoutCh := time.After(timeout)

	for {
		count, err := client.MemberCount(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("failed to count members: %w", err)
		}
		if count >= n {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeoutCh:
			return fmt.Errorf("timeout waiting for participants after %v: %d of %d joined", timeout, count, n)
		case <-ticker.C:
		}
	}
}

// Terminal reports whether a status is final.
func Terminal(status blackboard.SessionStatus) bool {
	return status.IsTerminal()
}

// Started reports whether the search began or already ended.
func Started(status blackboard.SessionStatus) bool {
	return status == blackboard.SessionStatusSearching || status.IsTerminal()
}
