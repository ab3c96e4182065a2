package commands

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dyluth/keyhunt/internal/config"
	"github.com/dyluth/keyhunt/internal/printer"
	"github.com/dyluth/keyhunt/internal/session"
	"github.com/dyluth/keyhunt/internal/transport"
	"github.com/spf13/cobra"
)

type joinOptions struct {
	sessionID    string
	id           int
	workers      int
	pollInterval int
	timeout      time.Duration
}

func newJoinCmd(g *globalOptions) *cobra.Command {
	o := &joinOptions{}

	cmd := &cobra.Command{
		Use:   "join",
		Short: "Take part in a session started by 'keyhunt run'",
		Long: `Join a distributed session as one participant and search until the
session is resolved.

Without --session the participant is configured from the environment:
  KEYHUNT_SESSION, KEYHUNT_PARTICIPANT_ID, REDIS_URL, KEYHUNT_NAMESPACE

Examples:
  keyhunt join --redis-url redis://host:6379 --session 0f8fad --id 2

  KEYHUNT_SESSION=0f8fad5b-d9cb-469f-a165-70867728950e \
  KEYHUNT_PARTICIPANT_ID=2 REDIS_URL=redis://host:6379 keyhunt join`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJoin(cmd, g, o)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&o.sessionID, "session", "", "Session ID or unique prefix (at least 6 characters)")
	flags.IntVar(&o.id, "id", -1, "Participant ID to take")
	flags.IntVar(&o.workers, "workers", 0, "Workers for this participant (default all CPUs)")
	flags.IntVar(&o.pollInterval, "poll-interval", 0, "Keys tried between checks for a stop signal")
	flags.DurationVar(&o.timeout, "timeout", session.DefaultJoinTimeout, "How long to wait for the session to start")
	return cmd
}

func runJoin(cmd *cobra.Command, g *globalOptions, o *joinOptions) error {
	cfg, err := loadConfig(cmd, g)
	if err != nil {
		return err
	}

	redisURL, namespace := cfg.Redis.URL, cfg.Redis.Namespace
	sessionID, id := o.sessionID, o.id
	if sessionID == "" {
		env, err := config.LoadParticipantEnv()
		if err != nil {
			return printer.Error(
				"participant not configured",
				err.Error(),
				[]string{"Pass --session and --id", "Set KEYHUNT_SESSION, KEYHUNT_PARTICIPANT_ID and REDIS_URL"},
			)
		}
		sessionID, id, redisURL = env.SessionID, env.ParticipantID, env.RedisURL
		if !cmd.Flags().Changed("namespace") {
			namespace = env.Namespace
		}
	}
	if id < 0 {
		return printer.Error("participant ID required", "Pass --id with the ID printed by 'keyhunt run'.", nil)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := connect(ctx, redisURL, namespace)
	if err != nil {
		return err
	}
	defer client.Close()

	fullID, err := resolveSession(cmd, client, sessionID)
	if err != nil {
		return err
	}

	start := time.Now()
	res, err := session.Join(ctx, client, fullID, transport.ParticipantID(id), session.JoinOptions{
		Workers:      o.workers,
		PollInterval: o.pollInterval,
		Timeout:      o.timeout,
	}, logger)
	if err != nil {
		if errors.Is(err, session.ErrInvalidTransition) {
			return printer.Error("cannot join session", err.Error(), []string{"Only sessions that are still configuring accept participants"})
		}
		return printer.ErrorWithContext("participant failed", err.Error(),
			map[string]string{"Session": fullID, "Participant": fmt.Sprint(id)}, nil)
	}

	printer.Result(cmd.OutOrStdout(), res, time.Since(start))
	return nil
}
