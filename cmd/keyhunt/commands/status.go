package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dyluth/keyhunt/internal/printer"
	"github.com/dyluth/keyhunt/internal/resolver"
	"github.com/dyluth/keyhunt/internal/watch"
	"github.com/dyluth/keyhunt/pkg/blackboard"
	"github.com/spf13/cobra"
)

func newStatusCmd(g *globalOptions) *cobra.Command {
	var (
		watchFlag bool
		wait      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "status SESSION",
		Short: "Show a session stored on the blackboard",
		Long: `Show the configuration, state and result of a session. SESSION may be a
full ID or a unique prefix of at least 6 characters.

With --watch, state changes are streamed until the session finishes.
With --wait, the blackboard is polled until the session finishes or the
duration elapses, then the final record is shown.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, g)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			client, err := connect(ctx, cfg.Redis.URL, cfg.Redis.Namespace)
			if err != nil {
				return err
			}
			defer client.Close()

			id, err := resolveSession(cmd, client, args[0])
			if err != nil {
				return err
			}

			if watchFlag {
				return watchSession(ctx, cmd, client, id)
			}

			var s *blackboard.Session
			if wait > 0 {
				s, err = watch.PollForStatus(ctx, client, id, watch.Terminal, wait)
			} else {
				s, err = client.GetSession(ctx, id)
			}
			if err != nil {
				return fmt.Errorf("failed to read session: %w", err)
			}
			printer.Session(cmd.OutOrStdout(), s)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Stream state changes until the session finishes")
	cmd.Flags().DurationVar(&wait, "wait", 0, "Poll until the session finishes, for at most this long")
	cmd.MarkFlagsMutuallyExclusive("watch", "wait")
	return cmd
}

// watchSession prints state changes of one session until it is terminal.
// The subscription is opened before the first read so no update is missed.
func watchSession(ctx context.Context, cmd *cobra.Command, client *blackboard.Client, id string) error {
	sub, err := client.SubscribeSessionEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to session events: %w", err)
	}
	defer sub.Close()

	s, err := client.GetSession(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to read session: %w", err)
	}

	out := cmd.OutOrStdout()
	last := s.Status
	fmt.Fprintf(out, "status: %s\n", last)

	errs := sub.Errors()
	for !s.Status.IsTerminal() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			printer.Warning("skipping malformed session event: %v\n", err)
		case ev, ok := <-sub.Events():
			if !ok {
				return fmt.Errorf("session event subscription closed")
			}
			if ev.ID != id {
				continue
			}
			s = ev
			if s.Status != last {
				last = s.Status
				fmt.Fprintf(out, "status: %s\n", last)
			}
		}
	}

	printer.Session(out, s)
	return nil
}

// resolveSession expands a short session ID, printing a formatted error when
// it does not match exactly one session.
func resolveSession(cmd *cobra.Command, client *blackboard.Client, shortID string) (string, error) {
	id, err := resolver.ResolveSessionID(cmd.Context(), client, shortID)
	switch {
	case err == nil:
		return id, nil
	case resolver.IsNotFoundError(err):
		return "", printer.Error("session not found", err.Error(), []string{"List sessions with 'keyhunt list'"})
	case resolver.IsAmbiguousError(err):
		var ambiguous *resolver.AmbiguousError
		errors.As(err, &ambiguous)
		return "", printer.Error("ambiguous session ID", resolver.FormatAmbiguousError(ambiguous), nil)
	default:
		return "", printer.Error("invalid session ID", err.Error(), nil)
	}
}
