// Package config loads CLI configuration from a YAML file, TAXID_* environment
// variables and command-line overrides, in increasing order of priority.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/rezonia/etims-go/pkg/etims"
)

// EnvPrefix is the prefix shared by every environment key.
const EnvPrefix = "TAXID_"

// Config is the resolved CLI configuration.
type Config struct {
	API     APIConfig     `koanf:"api"`
	Client  ClientConfig  `koanf:"client"`
	Timeout time.Duration `koanf:"timeout"`
	Batch   BatchConfig   `koanf:"batch"`
	Rate    RateConfig    `koanf:"rate"`
	Log     LogConfig     `koanf:"log"`
	Sandbox SandboxConfig `koanf:"sandbox"`
}

type APIConfig struct {
	URL string `koanf:"url"`
	Key string `koanf:"key"`
}

// ClientConfig holds the client-credentials pair used for bearer mode.
type ClientConfig struct {
	ID     string `koanf:"id"`
	Secret string `koanf:"secret"`
}

type BatchConfig struct {
	Size        int `koanf:"size"`
	Concurrency int `koanf:"concurrency"`
}

// RateConfig paces outgoing requests. A zero limit disables pacing.
type RateConfig struct {
	Limit float64 `koanf:"limit"`
	Burst int     `koanf:"burst"`
}

type LogConfig struct {
	Level string `koanf:"level"`
}

type SandboxConfig struct {
	Address string `koanf:"address"`
}

// Defaults returns the flattened default values.
func Defaults() map[string]any {
	return map[string]any{
		"api.url":           etims.DefaultBaseURL,
		"timeout":           etims.DefaultTimeout.String(),
		"batch.size":        etims.DefaultBatchSize,
		"batch.concurrency": 1,
		"rate.limit":        0.0,
		"rate.burst":        1,
		"log.level":         "info",
		"sandbox.address":   ":8080",
	}
}

// Loader merges configuration sources.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
	overrides map[string]any
}

// Option configures a Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile sets the YAML file path. An empty path skips the file.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

// WithOverrides sets values applied after the environment, typically the
// flags the user set explicitly.
func WithOverrides(values map[string]any) Option {
	return func(l *Loader) {
		l.overrides = values
	}
}

// NewLoader creates a loader with the TAXID_ prefix.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: EnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load resolves every source into a Config.
// Order (later wins): defaults, file, environment, overrides.
func (l *Loader) Load() (*Config, error) {
	if err := l.LoadMap(Defaults()); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if err := l.LoadFile(l.filePath); err != nil {
		return nil, fmt.Errorf("load config file: %w", err)
	}

	if err := l.LoadEnv(); err != nil {
		return nil, err
	}

	if len(l.overrides) > 0 {
		if err := l.LoadMap(l.overrides); err != nil {
			return nil, fmt.Errorf("load overrides: %w", err)
		}
	}

	cfg := &Config{}
	if err := l.k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads a YAML file.
func (l *Loader) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("load file %s: %w", path, err)
	}
	return nil
}

// LoadEnv loads prefixed environment variables.
// TAXID_CLIENT_SECRET becomes client.secret. Blank values are ignored.
func (l *Loader) LoadEnv() error {
	transform := func(s string) string {
		s = strings.TrimPrefix(s, l.envPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "_", ".")
	}

	envK := koanf.New(".")
	if err := envK.Load(env.Provider(l.envPrefix, ".", transform), nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}

	values := make(map[string]any)
	for key, value := range envK.All() {
		if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
			continue
		}
		values[key] = value
	}
	return l.LoadMap(values)
}

// LoadMap loads flattened key/value pairs.
func (l *Loader) LoadMap(data map[string]any) error {
	if err := l.k.Load(mapProvider(data), nil); err != nil {
		return fmt.Errorf("load map: %w", err)
	}
	return nil
}

// Validate rejects values the client cannot use.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.Batch.Size <= 0 {
		return fmt.Errorf("batch.size must be positive, got %d", c.Batch.Size)
	}
	if c.Batch.Concurrency <= 0 {
		return fmt.Errorf("batch.concurrency must be positive, got %d", c.Batch.Concurrency)
	}
	if c.Rate.Limit < 0 {
		return fmt.Errorf("rate.limit must not be negative, got %v", c.Rate.Limit)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log.level %q", c.Log.Level)
	}
	return nil
}

// ClientOptions translates the configuration into SDK options.
func (c *Config) ClientOptions() []etims.Option {
	opts := []etims.Option{
		etims.WithBaseURL(c.API.URL),
		etims.WithTimeout(c.Timeout),
		etims.WithBatchSize(c.Batch.Size),
		etims.WithBatchConcurrency(c.Batch.Concurrency),
	}
	if c.API.Key != "" {
		opts = append(opts, etims.WithAPIKey(c.API.Key))
	}
	if c.Rate.Limit > 0 {
		opts = append(opts, etims.WithRateLimit(c.Rate.Limit, c.Rate.Burst))
	}
	return opts
}
