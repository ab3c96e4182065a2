package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dyluth/keyhunt/internal/config"
	"github.com/dyluth/keyhunt/internal/printer"
	"github.com/dyluth/keyhunt/internal/session"
	"github.com/dyluth/keyhunt/pkg/blackboard"
	"github.com/dyluth/keyhunt/pkg/oracle"
	"github.com/spf13/cobra"
)

type runOptions struct {
	phrase       string
	key          string
	strategy     string
	tieBreak     string
	participants int
	local        int
	workers      int
	unitSize     uint64
	pollInterval int
	lower        uint64
	upper        uint64
}

func newRunCmd(g *globalOptions) *cobra.Command {
	o := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Plant a key in a file's text and search for it",
		Long: `Encrypt the contents of FILE with a planted key, then search the keyspace
for a key whose decryption contains the phrase.

The phrase and key are prompted for unless given as flags. All participants
run in this process unless --local is lower than --participants; the
remaining ones join through Redis with 'keyhunt join'.

Examples:
  # Search [0, 999] with 4 participants handing out units of 100 keys
  keyhunt run message.txt --phrase "es una prueba de" --key 537 \
    --participants 4 --unit-size 100 --lower 0 --upper 999

  # Host the dispatcher here, let two more machines join
  keyhunt run message.txt --participants 3 --local 1 --redis-url redis://host:6379`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, g, o, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&o.phrase, "phrase", "", "Phrase the decrypted text must contain (prompted if omitted)")
	flags.StringVar(&o.key, "key", "", "Key to plant, decimal or 0x-prefixed hex (prompted if omitted)")
	flags.StringVar(&o.strategy, "strategy", "", "Partitioning strategy: static or dynamic")
	flags.StringVar(&o.tieBreak, "tie-break", "", "Tie break between matches: ordered or first")
	flags.IntVar(&o.participants, "participants", 0, "Total number of participants")
	flags.IntVar(&o.local, "local", 0, "Participants hosted by this process (default all)")
	flags.IntVar(&o.workers, "workers", 0, "Workers per participant (default shares all CPUs)")
	flags.Uint64Var(&o.unitSize, "unit-size", 0, "Keys per dynamic work unit")
	flags.IntVar(&o.pollInterval, "poll-interval", 0, "Keys tried between checks for a stop signal")
	flags.Uint64Var(&o.lower, "lower", 0, "Lowest key of the keyspace")
	flags.Uint64Var(&o.upper, "upper", 0, "Highest key of the keyspace")
	return cmd
}

// applyRunFlags overrides file configuration with the flags that were set.
func applyRunFlags(cmd *cobra.Command, cfg *config.KeyhuntConfig, o *runOptions) error {
	flags := cmd.Flags()
	s := cfg.Search
	if flags.Changed("strategy") {
		s.Strategy = o.strategy
	}
	if flags.Changed("tie-break") {
		s.TieBreak = o.tieBreak
	}
	if flags.Changed("participants") {
		s.Participants = o.participants
	}
	if flags.Changed("workers") {
		s.Workers = o.workers
	}
	if flags.Changed("unit-size") {
		s.UnitSize = o.unitSize
	}
	if flags.Changed("poll-interval") {
		s.PollInterval = o.pollInterval
	}
	if flags.Changed("lower") {
		s.Keyspace.Lower = &o.lower
	}
	if flags.Changed("upper") {
		s.Keyspace.Upper = &o.upper
	}
	return cfg.Validate()
}

func runSearch(cmd *cobra.Command, g *globalOptions, o *runOptions, path string) error {
	cfg, err := loadConfig(cmd, g)
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, cfg, o); err != nil {
		return printer.Error("invalid configuration", err.Error(), []string{"Run 'keyhunt run --help' for the accepted values"})
	}

	ks, err := cfg.Search.Bounds()
	if err != nil {
		return err
	}
	sc := session.Config{
		Strategy:     blackboard.Strategy(cfg.Search.Strategy),
		TieBreak:     blackboard.TieBreak(cfg.Search.TieBreak),
		Participants: cfg.Search.Participants,
		Local:        o.local,
		Workers:      cfg.Search.Workers,
		PollInterval: cfg.Search.PollInterval,
		UnitSize:     cfg.Search.UnitSize,
		Keyspace:     ks,
	}
	if err := sc.Validate(); err != nil {
		return printer.Error("invalid configuration", err.Error(), nil)
	}
	remote := sc.Local < sc.Participants
	if remote && cfg.Redis.URL == "" {
		return printer.Error(
			"Redis URL required",
			fmt.Sprintf("Hosting %d of %d participants here needs a blackboard for the others to join.", sc.Local, sc.Participants),
			[]string{"Pass --redis-url redis://host:6379", "Drop --local to run every participant here"},
		)
	}

	plaintext, err := os.ReadFile(path)
	if err != nil {
		return printer.Error("cannot read input file", err.Error(), nil)
	}

	p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
	phrase := o.phrase
	if !cmd.Flags().Changed("phrase") {
		if phrase, err = p.line("Search phrase: "); err != nil {
			return printer.Error("missing search phrase", err.Error(), []string{"Pass --phrase"})
		}
	}
	var key uint64
	if cmd.Flags().Changed("key") {
		if key, err = parseKey(o.key); err != nil {
			return printer.Error("invalid key", err.Error(), nil)
		}
	} else if key, err = p.key("Key to plant: "); err != nil {
		return printer.Error("missing key", err.Error(), []string{"Pass --key"})
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []session.Option{session.WithLogger(logger)}
	if cfg.Redis.URL != "" {
		client, err := connect(ctx, cfg.Redis.URL, cfg.Redis.Namespace)
		if err != nil {
			return err
		}
		defer client.Close()
		opts = append(opts, session.WithBlackboard(client))
	}

	s, err := session.New(sc, opts...)
	if err != nil {
		return err
	}
	if err := s.Configure(ctx, plaintext, phrase, key); err != nil {
		if errors.Is(err, oracle.ErrWeakKey) {
			return weakKeyError(key)
		}
		return printer.Error("invalid configuration", err.Error(), nil)
	}

	if cfg.Redis.URL != "" {
		printer.Step("session %s stored in namespace %s\n", s.ID(), cfg.Redis.Namespace)
	}
	if remote {
		printJoinHelp(cmd, cfg, s.ID(), sc)
	}

	report, err := s.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return printer.Error("search interrupted", err.Error(), nil)
		}
		return printer.ErrorWithContext("search failed", err.Error(), map[string]string{"Session": s.ID()}, nil)
	}

	printer.Result(cmd.OutOrStdout(), report.Result, report.Elapsed)
	return nil
}

func printJoinHelp(cmd *cobra.Command, cfg *config.KeyhuntConfig, sessionID string, sc session.Config) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "session %s waiting for %d more participant(s); join with:\n", sessionID, sc.Participants-sc.Local)
	for id := sc.Local; id < sc.Participants; id++ {
		fmt.Fprintf(out, "  keyhunt join --redis-url %s --namespace %s --session %s --id %d\n",
			cfg.Redis.URL, cfg.Redis.Namespace, sessionID, id)
	}
}
