// Package config loads and saves yard configuration from drover.toml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/drovertools/drover/internal/constants"
)

// Defaults for recognized options.
const (
	DefaultHeartbeatTimeoutSeconds = 300
	DefaultPollIntervalSeconds     = 30
	DefaultMaxRetries              = 3
	DefaultRetryCooldownSeconds    = 60
	DefaultRestartCooldownSeconds  = 300
	DefaultMaxMessageSize          = 64 * 1024
	DefaultMaxAgeDays              = 7
	DefaultInjectTimeoutSeconds    = 30
	DefaultCleanupSchedule         = "@hourly"
)

// Config holds the yard configuration from drover.toml.
type Config struct {
	// Agents is the roster of known agent ids.
	Agents []string `toml:"agents"`

	// HeartbeatTimeoutSeconds is how stale a heartbeat may be before an
	// agent is suspected dead.
	HeartbeatTimeoutSeconds int `toml:"heartbeat_timeout_seconds"`

	// PollIntervalSeconds is the heartbeat monitor polling interval.
	PollIntervalSeconds int `toml:"poll_interval_seconds"`

	// MaxRetries bounds automatic recovery attempts per outage.
	MaxRetries int `toml:"max_retries"`

	// RetryCooldownSeconds is the minimum gap between consecutive
	// recovery attempts for the same agent.
	RetryCooldownSeconds int `toml:"retry_cooldown_seconds"`

	// RestartCooldownSeconds is the minimum idle period after a
	// successful restart before another attempt may start.
	RestartCooldownSeconds int `toml:"restart_cooldown_seconds"`

	// MaxMessageSize bounds message content, in bytes.
	MaxMessageSize int `toml:"max_message_size"`

	// MaxAgeDays is how long processed/quarantined records are kept.
	MaxAgeDays int `toml:"max_age_days"`

	// InjectTimeoutSeconds bounds a single injector call.
	InjectTimeoutSeconds int `toml:"inject_timeout_seconds"`

	// CleanupSchedule is a cron spec for the daemon's cleanup job.
	CleanupSchedule string `toml:"cleanup_schedule"`

	Tmux TmuxConfig `toml:"tmux"`
	Chat ChatConfig `toml:"chat"`
}

// TmuxConfig configures the tmux injector.
type TmuxConfig struct {
	// SessionPrefix is prepended to agent ids to form tmux session names.
	SessionPrefix string `toml:"session_prefix"`
}

// ChatConfig configures the exec-backed chat collaborator.
type ChatConfig struct {
	// Command is the program invoked with the prompt on stdin.
	// Empty disables the chat backend.
	Command string `toml:"command"`
}

// DefaultConfig returns a config populated with defaults and an empty roster.
func DefaultConfig() *Config {
	return &Config{
		HeartbeatTimeoutSeconds: DefaultHeartbeatTimeoutSeconds,
		PollIntervalSeconds:     DefaultPollIntervalSeconds,
		MaxRetries:              DefaultMaxRetries,
		RetryCooldownSeconds:    DefaultRetryCooldownSeconds,
		RestartCooldownSeconds:  DefaultRestartCooldownSeconds,
		MaxMessageSize:          DefaultMaxMessageSize,
		MaxAgeDays:              DefaultMaxAgeDays,
		InjectTimeoutSeconds:    DefaultInjectTimeoutSeconds,
		CleanupSchedule:         DefaultCleanupSchedule,
		Tmux:                    TmuxConfig{SessionPrefix: "drover-"},
	}
}

// Path returns the config file path for a yard root.
func Path(yardRoot string) string {
	return filepath.Join(yardRoot, constants.ConfigFile)
}

// Load reads drover.toml from the yard root. Missing optional keys fall
// back to defaults; a missing or unparseable file is an error (config-load
// failures at startup are fatal to the daemon).
func Load(yardRoot string) (*Config, error) {
	cfg := DefaultConfig()

	path := Path(yardRoot)
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no config at %s: %w", path, err)
		}
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the config to drover.toml in the yard root.
func Save(yardRoot string, cfg *Config) error {
	f, err := os.Create(Path(yardRoot))
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.HeartbeatTimeoutSeconds <= 0 {
		return fmt.Errorf("heartbeat_timeout_seconds must be positive, got %d", c.HeartbeatTimeoutSeconds)
	}
	if c.PollIntervalSeconds <= 0 {
		return fmt.Errorf("poll_interval_seconds must be positive, got %d", c.PollIntervalSeconds)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", c.MaxRetries)
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("max_message_size must be positive, got %d", c.MaxMessageSize)
	}
	return nil
}

// HeartbeatTimeout returns the heartbeat staleness threshold.
func (c *Config) HeartbeatTimeout() time.Duration {
	return time.Duration(c.HeartbeatTimeoutSeconds) * time.Second
}

// PollInterval returns the monitor polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// RetryCooldown returns the gap required between recovery attempts.
func (c *Config) RetryCooldown() time.Duration {
	return time.Duration(c.RetryCooldownSeconds) * time.Second
}

// RestartCooldown returns the idle period required after a restart.
func (c *Config) RestartCooldown() time.Duration {
	return time.Duration(c.RestartCooldownSeconds) * time.Second
}

// InjectTimeout returns the bound on a single injector call.
func (c *Config) InjectTimeout() time.Duration {
	return time.Duration(c.InjectTimeoutSeconds) * time.Second
}

// MaxAge returns the retention period for processed/quarantined records.
func (c *Config) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeDays) * 24 * time.Hour
}
