// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Progress ProgressConfig `mapstructure:"progress"`
	History  HistoryConfig  `mapstructure:"history"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port              int `mapstructure:"port"`
	ShutdownGraceSecs int `mapstructure:"shutdown_grace_seconds"`
}

// ProgressConfig governs per-session reporting behavior.
type ProgressConfig struct {
	HoldMs     int `mapstructure:"hold_ms"`
	BufferSize int `mapstructure:"buffer_size"`
}

// HistoryConfig bounds the per-session snapshot window.
type HistoryConfig struct {
	Window int `mapstructure:"window"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_grace_seconds", 10)
	v.SetDefault("progress.hold_ms", 600)
	v.SetDefault("progress.buffer_size", 256)
	v.SetDefault("history.window", 64)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Progress.HoldMs < 0 {
		return fmt.Errorf("progress.hold_ms must be >= 0")
	}
	if c.Progress.BufferSize <= 0 {
		return fmt.Errorf("progress.buffer_size must be > 0")
	}
	if c.History.Window <= 0 {
		return fmt.Errorf("history.window must be > 0")
	}
	return nil
}

// HoldDelay converts the configured completion hold into a duration.
func (c Config) HoldDelay() time.Duration {
	return time.Duration(c.Progress.HoldMs) * time.Millisecond
}

// ShutdownGrace converts the configured shutdown grace into a duration.
func (c Config) ShutdownGrace() time.Duration {
	return time.Duration(c.Server.ShutdownGraceSecs) * time.Second
}
