package config

import (
	"fmt"
	"math"
	"os"

	"github.com/dyluth/keyhunt/pkg/blackboard"
	"github.com/dyluth/keyhunt/pkg/keyspace"
	"gopkg.in/yaml.v3"
)

// Defaults applied by Validate.
const (
	DefaultParticipants = 4
	DefaultUnitSize     = 1_000_000
	DefaultPollInterval = 64
	DefaultNamespace    = "default"
)

// KeyhuntConfig represents the top-level keyhunt.yml configuration
type KeyhuntConfig struct {
	Version  string        `yaml:"version"`
	Search   *SearchConfig `yaml:"search,omitempty"`
	Redis    *RedisConfig  `yaml:"redis,omitempty"`
	LogLevel string        `yaml:"log_level,omitempty"` // debug, info, warn or error
}

// SearchConfig describes how the keyspace is searched
type SearchConfig struct {
	Strategy     string          `yaml:"strategy,omitempty"`  // static or dynamic (default)
	TieBreak     string          `yaml:"tie_break,omitempty"` // ordered (default) or first
	Participants int             `yaml:"participants,omitempty"`
	Workers      int             `yaml:"workers,omitempty"` // per participant, 0 = NumCPU shared
	UnitSize     uint64          `yaml:"unit_size,omitempty"`
	PollInterval int             `yaml:"poll_interval,omitempty"` // keys between stop checks
	Keyspace     *KeyspaceConfig `yaml:"keyspace,omitempty"`
}

// KeyspaceConfig holds inclusive keyspace bounds. Missing bounds default to
// the full 64-bit range.
type KeyspaceConfig struct {
	Lower *uint64 `yaml:"lower,omitempty"`
	Upper *uint64 `yaml:"upper,omitempty"`
}

// RedisConfig locates the blackboard for distributed sessions
type RedisConfig struct {
	URL       string `yaml:"url,omitempty"`
	Namespace string `yaml:"namespace,omitempty"`
}

// Default returns the configuration used when no keyhunt.yml exists.
func Default() *KeyhuntConfig {
	cfg := &KeyhuntConfig{Version: "1.0"}
	// Defaults always validate.
	_ = cfg.Validate()
	return cfg
}

// Validate performs strict validation on the configuration and applies
// defaults for omitted fields
func (c *KeyhuntConfig) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Search == nil {
		c.Search = &SearchConfig{}
	}
	if err := c.Search.Validate(); err != nil {
		return err
	}

	if c.Redis == nil {
		c.Redis = &RedisConfig{}
	}
	if c.Redis.Namespace == "" {
		c.Redis.Namespace = DefaultNamespace
	}

	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level: %s (must be 'debug', 'info', 'warn' or 'error')", c.LogLevel)
	}

	return nil
}

// Validate checks the search section and fills in its defaults
func (s *SearchConfig) Validate() error {
	if s.Strategy == "" {
		s.Strategy = string(blackboard.StrategyDynamic)
	}
	if err := blackboard.Strategy(s.Strategy).Validate(); err != nil {
		return fmt.Errorf("search: invalid strategy: %s (must be 'static' or 'dynamic')", s.Strategy)
	}

	if s.TieBreak == "" {
		s.TieBreak = string(blackboard.TieBreakOrdered)
	}
	if err := blackboard.TieBreak(s.TieBreak).Validate(); err != nil {
		return fmt.Errorf("search: invalid tie_break: %s (must be 'ordered' or 'first')", s.TieBreak)
	}

	if s.Participants == 0 {
		s.Participants = DefaultParticipants
	}
	if s.Participants < 1 {
		return fmt.Errorf("search.participants must be >= 1, got %d", s.Participants)
	}
	if s.Strategy == string(blackboard.StrategyDynamic) && s.Participants < 2 {
		return fmt.Errorf("search.participants must be >= 2 for the dynamic strategy, got %d", s.Participants)
	}

	if s.Workers < 0 {
		return fmt.Errorf("search.workers must be >= 0 (0 = all CPUs), got %d", s.Workers)
	}

	if s.UnitSize == 0 {
		s.UnitSize = DefaultUnitSize
	}

	if s.PollInterval == 0 {
		s.PollInterval = DefaultPollInterval
	}
	if s.PollInterval < 0 {
		return fmt.Errorf("search.poll_interval must be >= 1, got %d", s.PollInterval)
	}

	if s.Keyspace == nil {
		s.Keyspace = &KeyspaceConfig{}
	}
	if s.Keyspace.Lower == nil {
		lower := uint64(0)
		s.Keyspace.Lower = &lower
	}
	if s.Keyspace.Upper == nil {
		upper := uint64(math.MaxUint64)
		s.Keyspace.Upper = &upper
	}
	if _, err := s.Bounds(); err != nil {
		return fmt.Errorf("search.keyspace: %w", err)
	}

	return nil
}

// Bounds returns the configured keyspace. Validate must have been called.
func (s *SearchConfig) Bounds() (keyspace.Keyspace, error) {
	if s.Keyspace == nil || s.Keyspace.Lower == nil || s.Keyspace.Upper == nil {
		return keyspace.Full(), nil
	}
	return keyspace.New(*s.Keyspace.Lower, *s.Keyspace.Upper)
}

// Load reads and validates keyhunt.yml from the specified path
func Load(path string) (*KeyhuntConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config KeyhuntConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadOrDefault loads path when it exists and falls back to Default when it
// does not. Any other read or validation error is returned.
func LoadOrDefault(path string) (*KeyhuntConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(path)
}
