// Package config loads luafs settings from TOML or YAML with environment
// overrides. The mount whitelists and extension whitelist are compiled in and
// cannot be configured.
package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/dshills/luafs/internal/logging"
	"github.com/dshills/luafs/internal/validate"
)

// Config is the full luafs configuration.
type Config struct {
	// Policy selects the path policy: "auto", "posix" or "windows".
	Policy  string        `toml:"policy" yaml:"policy"`
	Logging LoggingConfig `toml:"logging" yaml:"logging"`
	Script  ScriptConfig  `toml:"script" yaml:"script"`

	// Mounts maps mount IDs to their physical roots in search order.
	// Relative roots are taken relative to the config file.
	Mounts map[string][]string `toml:"mounts" yaml:"mounts"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level      string `toml:"level" yaml:"level"`
	File       string `toml:"file" yaml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `toml:"compress" yaml:"compress"`
}

// ScriptConfig bounds script execution.
type ScriptConfig struct {
	Timeout          Duration `toml:"timeout" yaml:"timeout"`
	InstructionLimit int64    `toml:"instruction_limit" yaml:"instruction_limit"`
}

// Duration is a time.Duration written as "5s" or "250ms".
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q", ErrInvalidValue, text)
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Policy: "auto",
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Script: ScriptConfig{
			Timeout:          Duration(5 * time.Second),
			InstructionLimit: 1_000_000,
		},
		Mounts: map[string][]string{},
	}
}

// PathPolicy returns the configured path policy.
func (c *Config) PathPolicy() (validate.PathPolicy, error) {
	p, err := validate.ParsePolicy(c.Policy)
	if err != nil {
		return validate.PathPolicy{}, fmt.Errorf("%w: policy: %v", ErrInvalidValue, err)
	}
	return p, nil
}

// LoggerConfig converts the logging section.
func (c *Config) LoggerConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(c.Logging.Level)
	cfg.File = c.Logging.File
	cfg.Rotation = logging.Rotation{
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxBackups: c.Logging.MaxBackups,
		MaxAgeDays: c.Logging.MaxAgeDays,
		Compress:   c.Logging.Compress,
	}
	return cfg
}

// MountIDs returns the configured mount IDs in sorted order.
func (c *Config) MountIDs() []string {
	ids := make([]string, 0, len(c.Mounts))
	for id := range c.Mounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Validate checks values that cannot be checked while decoding.
func (c *Config) Validate() error {
	if _, err := c.PathPolicy(); err != nil {
		return err
	}
	if c.Script.Timeout < 0 {
		return fmt.Errorf("%w: script.timeout must not be negative", ErrInvalidValue)
	}
	if c.Script.InstructionLimit < 0 {
		return fmt.Errorf("%w: script.instruction_limit must not be negative", ErrInvalidValue)
	}
	for id, roots := range c.Mounts {
		if id == "" {
			return fmt.Errorf("%w: empty mount ID", ErrInvalidValue)
		}
		for _, r := range roots {
			if r == "" {
				return fmt.Errorf("%w: mount %q has an empty root", ErrInvalidValue, id)
			}
		}
	}
	return nil
}

// resolveMounts makes relative roots absolute against dir. Empty roots are
// left empty so Validate still rejects them.
func (c *Config) resolveMounts(dir string) {
	for id, roots := range c.Mounts {
		for i, r := range roots {
			if r != "" && !filepath.IsAbs(r) {
				roots[i] = filepath.Join(dir, r)
			}
		}
		c.Mounts[id] = roots
	}
}
