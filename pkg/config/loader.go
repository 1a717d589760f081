package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix marks environment overrides, e.g. SEWERTRACE_LOG_LEVEL=debug
	EnvPrefix = "SEWERTRACE_"
	// ConfigEnvVar names an explicit config file
	ConfigEnvVar = "SEWERTRACE_CONFIG"
)

var errWatchNeedsFile = errors.New("file watching requires the yaml network source")

// Loader merges defaults, a YAML file and the environment, lowest priority first
type Loader struct {
	k           *koanf.Koanf
	path        string
	searchPaths []string
	envPrefix   string
}

type LoaderOption func(*Loader)

// WithFile loads exactly this file; a missing file is an error
func WithFile(path string) LoaderOption {
	return func(l *Loader) { l.path = path }
}

// WithSearchPaths replaces the optional file locations
func WithSearchPaths(paths ...string) LoaderOption {
	return func(l *Loader) { l.searchPaths = paths }
}

func WithEnvPrefix(prefix string) LoaderOption {
	return func(l *Loader) { l.envPrefix = prefix }
}

func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		k:           koanf.New("."),
		searchPaths: []string{"sewertrace.yaml", "config/sewertrace.yaml"},
		envPrefix:   EnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load returns the validated configuration
func (l *Loader) Load() (*Config, error) {
	if err := l.k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := l.loadFile(); err != nil {
		return nil, err
	}

	if err := l.loadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load is a shortcut for NewLoader(opts...).Load()
func Load(opts ...LoaderOption) (*Config, error) {
	return NewLoader(opts...).Load()
}

func defaults() map[string]any {
	return map[string]any{
		"log.level":       "info",
		"log.output":      "stderr",
		"log.file":        "",
		"log.max_size":    100,
		"log.max_backups": 3,
		"log.max_age":     7,
		"log.compress":    true,

		"network.source":  SourceYAML,
		"network.path":    "network.yaml",
		"network.dsn":     "",
		"network.schema":  "public",
		"network.migrate": false,

		"selection.backend":        BackendMemory,
		"selection.redis.addr":     "localhost:6379",
		"selection.redis.password": "",
		"selection.redis.db":       0,
		"selection.redis.prefix":   "sewertrace",

		"session.dir":       ".sewertrace/sessions",
		"session.in_memory": false,
		"session.name":      "default",

		"metrics.enabled":   true,
		"metrics.namespace": "sewertrace",

		"watch.enabled": false,

		"events.enabled": false,
		"events.addr":    "tcp://127.0.0.1:7450",
	}
}

func (l *Loader) loadFile() error {
	path := l.path
	if path == "" {
		path = os.Getenv(ConfigEnvVar)
	}
	if path != "" {
		if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		return nil
	}

	for _, p := range l.searchPaths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := l.k.Load(file.Provider(p), yaml.Parser()); err != nil {
			return fmt.Errorf("failed to load config file %s: %w", p, err)
		}
		return nil
	}
	return nil
}

// envKeyMappings covers keys whose last segment contains an underscore
var envKeyMappings = map[string]string{
	"log_max_size":      "log.max_size",
	"log_max_backups":   "log.max_backups",
	"log_max_age":       "log.max_age",
	"session_in_memory": "session.in_memory",
}

func (l *Loader) loadEnv() error {
	configKey := strings.TrimPrefix(ConfigEnvVar, EnvPrefix)
	return l.k.Load(env.ProviderWithValue(l.envPrefix, ".", func(envKey, value string) (string, any) {
		raw := strings.TrimPrefix(envKey, l.envPrefix)
		if raw == configKey {
			return "", nil
		}
		key := strings.ToLower(raw)
		if mapped, ok := envKeyMappings[key]; ok {
			return mapped, value
		}
		return strings.ReplaceAll(key, "_", "."), value
	}), nil)
}
