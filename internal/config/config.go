package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full tripwire configuration.
type Config struct {
	Engine  EngineConfig  `mapstructure:"engine"`
	Log     LogConfig     `mapstructure:"log"`
	Journal JournalConfig `mapstructure:"journal"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// EngineConfig holds scheduler settings.
type EngineConfig struct {
	TickInterval     time.Duration `mapstructure:"tick_interval"`
	SettleQuietTicks int           `mapstructure:"settle_quiet_ticks"`
	SettleTimeout    time.Duration `mapstructure:"settle_timeout"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text or json
}

// JournalConfig holds the run journal location. Empty disables journaling.
type JournalConfig struct {
	Path string `mapstructure:"path"`
}

// MetricsConfig holds the Prometheus endpoint. Empty disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// EnvPrefix prefixes environment overrides, e.g.
// TRIPWIRE_ENGINE_TICK_INTERVAL=5ms.
const EnvPrefix = "TRIPWIRE"

// defaults are registered with viper so every key is visible to
// AutomaticEnv during Unmarshal.
var defaults = map[string]any{
	"engine.tick_interval":      "10ms",
	"engine.settle_quiet_ticks": 2,
	"engine.settle_timeout":     "10s",
	"log.level":                 "info",
	"log.format":                "text",
	"journal.path":              "",
	"metrics.addr":              "",
}

// Load reads configuration from path plus TRIPWIRE_* environment
// variables. With an empty path it looks for .tripwire.yaml in the working
// directory and carries on without one if it is missing.
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		if cwd, err := os.Getwd(); err == nil {
			v.AddConfigPath(cwd)
		}
		v.SetConfigName(".tripwire")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for unset fields
func applyDefaults(cfg *Config) {
	if cfg.Engine.TickInterval == 0 {
		cfg.Engine.TickInterval = 10 * time.Millisecond
	}
	if cfg.Engine.SettleQuietTicks == 0 {
		cfg.Engine.SettleQuietTicks = 2
	}
	if cfg.Engine.SettleTimeout == 0 {
		cfg.Engine.SettleTimeout = 10 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Engine.TickInterval <= 0 {
		return fmt.Errorf("engine.tick_interval must be positive, got %s", c.Engine.TickInterval)
	}
	if c.Engine.SettleQuietTicks <= 0 {
		return fmt.Errorf("engine.settle_quiet_ticks must be positive, got %d", c.Engine.SettleQuietTicks)
	}
	if c.Engine.SettleTimeout <= 0 {
		return fmt.Errorf("engine.settle_timeout must be positive, got %s", c.Engine.SettleTimeout)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Log.Format)
	}

	return nil
}
