package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/keyhunt/internal/config"
	"github.com/dyluth/keyhunt/internal/logging"
	"github.com/dyluth/keyhunt/internal/printer"
	"github.com/dyluth/keyhunt/pkg/blackboard"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var versionInfo = "dev"

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	redisURL   string
	namespace  string
	logLevel   string
}

// NewRootCmd builds the keyhunt command tree.
func NewRootCmd() *cobra.Command {
	g := &globalOptions{}

	root := &cobra.Command{
		Use:   "keyhunt",
		Short: "keyhunt - distributed exhaustive DES key search",
		Long: `keyhunt searches a range of 64-bit DES keys for the one that decrypts a
ciphertext into text containing a known phrase.

The keyspace is split among participants, either statically into one range
each or dynamically in bounded units handed out on request. Participants
run in this process or join from other machines through Redis.`,
		Version: versionInfo,
		// Prevent silent success when unknown flags are passed to root command
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		FParseErrWhitelist: cobra.FParseErrWhitelist{},
		SilenceErrors:      true,
		SilenceUsage:       true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&g.configPath, "config", "keyhunt.yml", "Path to keyhunt.yml (defaults apply when missing)")
	flags.StringVar(&g.redisURL, "redis-url", "", "Redis URL of the blackboard, e.g. redis://localhost:6379")
	flags.StringVar(&g.namespace, "namespace", "", "Blackboard namespace (default \"default\")")
	flags.StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	root.AddCommand(
		newRunCmd(g),
		newJoinCmd(g),
		newStatusCmd(g),
		newListCmd(g),
		newRmCmd(g),
		newEncryptCmd(),
		newDecryptCmd(),
		newInitCmd(),
	)
	return root
}

// Execute runs the keyhunt CLI. This is called by main.main().
func Execute() error {
	return NewRootCmd().Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	versionInfo = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

// loadConfig reads keyhunt.yml and applies the global flag overrides.
func loadConfig(cmd *cobra.Command, g *globalOptions) (*config.KeyhuntConfig, error) {
	cfg, err := config.LoadOrDefault(g.configPath)
	if err != nil {
		return nil, printer.Error(
			"invalid configuration",
			err.Error(),
			[]string{fmt.Sprintf("Fix %s or pass --config with another file", g.configPath)},
		)
	}

	flags := cmd.Flags()
	if flags.Changed("redis-url") {
		cfg.Redis.URL = g.redisURL
	}
	if flags.Changed("namespace") {
		cfg.Redis.Namespace = g.namespace
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = g.logLevel
	}
	return cfg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	logger, err := logging.New(level)
	if err != nil {
		return nil, printer.Error("invalid log level", err.Error(), []string{"Valid levels: debug, info, warn, error"})
	}
	return logger, nil
}

// connect opens the blackboard and verifies Redis connectivity.
func connect(ctx context.Context, redisURL, namespace string) (*blackboard.Client, error) {
	if redisURL == "" {
		return nil, printer.Error(
			"Redis URL required",
			"This command needs the shared blackboard.",
			[]string{"Pass --redis-url redis://host:6379", "Set redis.url in keyhunt.yml"},
		)
	}

	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, printer.Error("invalid Redis URL", err.Error(), []string{"Use the form redis://host:port[/db]"})
	}

	client, err := blackboard.NewClient(redisOpts, namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create blackboard client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, printer.ErrorWithContext(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", redisURL),
			map[string]string{"Error": err.Error()},
			[]string{"Check that Redis is running and reachable from this machine"},
		)
	}
	return client, nil
}
