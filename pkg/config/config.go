// Package config loads the sewertrace configuration from defaults, an
// optional YAML file and SEWERTRACE_ environment variables.
package config

import (
	"github.com/dd0wney/sewertrace/pkg/logging"
	"github.com/dd0wney/sewertrace/pkg/validation"
)

// Network sources
const (
	SourceYAML     = "yaml"
	SourcePostgres = "postgres"
)

// Selection backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the full application configuration
type Config struct {
	Log       LogConfig       `koanf:"log"`
	Network   NetworkConfig   `koanf:"network"`
	Selection SelectionConfig `koanf:"selection"`
	Session   SessionConfig   `koanf:"session"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Watch     WatchConfig     `koanf:"watch"`
	Events    EventsConfig    `koanf:"events"`
}

type LogConfig struct {
	Level      string `koanf:"level"`
	Output     string `koanf:"output"`
	File       string `koanf:"file"`
	MaxSize    int    `koanf:"max_size"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAge     int    `koanf:"max_age"`
	Compress   bool   `koanf:"compress"`
}

// NetworkConfig selects where edges, liaisons and entities come from
type NetworkConfig struct {
	Source  string `koanf:"source"`
	Path    string `koanf:"path"`
	DSN     string `koanf:"dsn"`
	Schema  string `koanf:"schema"`
	Migrate bool   `koanf:"migrate"`
}

type SelectionConfig struct {
	Backend string      `koanf:"backend"`
	Redis   RedisConfig `koanf:"redis"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	Prefix   string `koanf:"prefix"`
}

// SessionConfig locates the badger directory holding saved sessions
type SessionConfig struct {
	Dir      string `koanf:"dir"`
	InMemory bool   `koanf:"in_memory"`
	Name     string `koanf:"name"`
}

type MetricsConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Namespace string `koanf:"namespace"`
}

type WatchConfig struct {
	Enabled bool `koanf:"enabled"`
}

// EventsConfig points selection-change events at a collector, such as the
// map backend or a follow command
type EventsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// Validate checks every section and reports all problems at once
func (c *Config) Validate() error {
	v := validation.NewConfigValidator("config")

	v.OneOf("log.level", c.Log.Level, "debug", "info", "warn", "warning", "error").
		OneOf("log.output", c.Log.Output, logging.OutputStdout, logging.OutputStderr, logging.OutputFile).
		When(c.Log.Output == logging.OutputFile, func(v *validation.ConfigValidator) {
			v.Required("log.file", c.Log.File).
				Positive("log.max_size", c.Log.MaxSize).
				NonNegative("log.max_backups", c.Log.MaxBackups).
				NonNegative("log.max_age", c.Log.MaxAge)
		})

	v.OneOf("network.source", c.Network.Source, SourceYAML, SourcePostgres).
		When(c.Network.Source == SourceYAML, func(v *validation.ConfigValidator) {
			v.Required("network.path", c.Network.Path)
		}).
		When(c.Network.Source == SourcePostgres, func(v *validation.ConfigValidator) {
			v.Required("network.dsn", c.Network.DSN).
				Required("network.schema", c.Network.Schema)
		})

	v.OneOf("selection.backend", c.Selection.Backend, BackendMemory, BackendRedis).
		When(c.Selection.Backend == BackendRedis, func(v *validation.ConfigValidator) {
			v.Required("selection.redis.addr", c.Selection.Redis.Addr).
				RangeInt("selection.redis.db", c.Selection.Redis.DB, 0, 15).
				Required("selection.redis.prefix", c.Selection.Redis.Prefix)
		})

	v.When(!c.Session.InMemory, func(v *validation.ConfigValidator) {
		v.Required("session.dir", c.Session.Dir)
	}).Required("session.name", c.Session.Name)

	v.When(c.Metrics.Enabled, func(v *validation.ConfigValidator) {
		v.Required("metrics.namespace", c.Metrics.Namespace)
	})

	v.When(c.Events.Enabled, func(v *validation.ConfigValidator) {
		v.Required("events.addr", c.Events.Addr)
	})

	v.When(c.Watch.Enabled, func(v *validation.ConfigValidator) {
		v.Custom("watch.enabled", func() error {
			if c.Network.Source != SourceYAML {
				return errWatchNeedsFile
			}
			return nil
		})
	})

	return v.Validate()
}

// LogOutput converts the log section for logging.New
func (c *Config) LogOutput() logging.OutputConfig {
	return logging.OutputConfig{
		Level:      c.Log.Level,
		Output:     c.Log.Output,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSize,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAge,
		Compress:   c.Log.Compress,
	}
}
