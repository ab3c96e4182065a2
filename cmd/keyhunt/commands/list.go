package commands

import (
	"fmt"

	"github.com/dyluth/keyhunt/internal/filter"
	"github.com/dyluth/keyhunt/internal/printer"
	"github.com/dyluth/keyhunt/internal/timespec"
	"github.com/dyluth/keyhunt/pkg/blackboard"
	"github.com/spf13/cobra"
)

func newListCmd(g *globalOptions) *cobra.Command {
	var (
		output   string
		since    string
		until    string
		statuses []string
		strategy string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions stored on the blackboard",
		Long: `List the sessions of a namespace.

Output Formats:
  default - Human-readable table
  json    - Line-delimited JSON for programmatic processing

Examples:
  # Sessions created in the last hour
  keyhunt list --since 1h

  # Finished sessions that found a key, as JSON
  keyhunt list --status found --output=json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "default" && output != "json" {
				return printer.Error(
					"invalid output format",
					fmt.Sprintf("Unknown format: %s", output),
					[]string{"Valid formats: default, json"},
				)
			}

			criteria, err := listCriteria(since, until, statuses, strategy)
			if err != nil {
				return printer.Error("invalid filter", err.Error(), nil)
			}

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

			ids, err := client.ScanSessions(ctx, "")
			if err != nil {
				return err
			}

			sessions := make([]*blackboard.Session, 0, len(ids))
			for _, id := range ids {
				s, err := client.GetSession(ctx, id)
				if err != nil {
					// Deleted between scan and read.
					if blackboard.IsNotFound(err) {
						continue
					}
					return err
				}
				sessions = append(sessions, s)
			}
			if criteria.HasFilters() {
				sessions = criteria.Apply(sessions)
			}

			if output == "json" {
				return printer.SessionJSONL(cmd.OutOrStdout(), sessions)
			}
			printer.SessionTable(cmd.OutOrStdout(), sessions, cfg.Redis.Namespace)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&output, "output", "o", "default", "Output format (default or json)")
	flags.StringVar(&since, "since", "", "Only sessions created after this time (duration like 1h or RFC3339)")
	flags.StringVar(&until, "until", "", "Only sessions created before this time (duration like 1h or RFC3339)")
	flags.StringSliceVar(&statuses, "status", nil, "Only sessions in these states (repeatable)")
	flags.StringVar(&strategy, "strategy", "", "Only sessions using this strategy")
	return cmd
}

func listCriteria(since, until string, statuses []string, strategy string) (*filter.Criteria, error) {
	sinceMs, untilMs, err := timespec.ParseRange(since, until)
	if err != nil {
		return nil, err
	}

	c := &filter.Criteria{SinceTimestampMs: sinceMs, UntilTimestampMs: untilMs}
	for _, st := range statuses {
		status := blackboard.SessionStatus(st)
		if err := status.Validate(); err != nil {
			return nil, err
		}
		c.Statuses = append(c.Statuses, status)
	}
	if strategy != "" {
		c.Strategy = blackboard.Strategy(strategy)
		if err := c.Strategy.Validate(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func newRmCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rm SESSION",
		Short: "Delete a session and its mailboxes from the blackboard",
		Args:  cobra.ExactArgs(1),
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

			s, err := client.GetSession(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to read session: %w", err)
			}
			if !s.Status.IsTerminal() && s.Status != blackboard.SessionStatusIdle {
				printer.Warning("session %s is still %s; its participants will fail\n", id, s.Status)
			}

			if err := client.DeleteSession(ctx, id); err != nil {
				return err
			}
			printer.Success("deleted session %s\n", id)
			return nil
		},
	}
}
