// Package config loads the CLI bootstrap configuration from a YAML
// file with environment variable overrides.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is what the foundry CLI needs before it can build a client.
type Config struct {
	Endpoint   string      `yaml:"endpoint"`
	APIKey     string      `yaml:"api_key"`
	APIVersion string      `yaml:"api_version"`
	Retry      RetryConfig `yaml:"retry"`
	UsageDB    string      `yaml:"usage_db"`
	LogLevel   string      `yaml:"log_level"`
}

// RetryConfig mirrors the client retry policy knobs.
type RetryConfig struct {
	MaxRetries     int      `yaml:"max_retries"`
	InitialBackoff Duration `yaml:"initial_backoff"`
}

// Duration is a time.Duration that unmarshals from YAML strings like
// "500ms" or "2s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Load reads config from a YAML file with graceful fallback: a missing
// or malformed file yields defaults rather than an error, so the CLI
// works out of the box with environment variables alone.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Default(), nil
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), nil
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a config built from environment variables and
// fallback values.
func Default() *Config {
	cfg := &Config{}
	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("FOUNDRY_ENDPOINT"); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv("FOUNDRY_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("FOUNDRY_API_VERSION"); v != "" {
		c.APIVersion = v
	}
	if v := os.Getenv("FOUNDRY_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Retry.MaxRetries = n
		}
	}
	if v := os.Getenv("FOUNDRY_USAGE_DB"); v != "" {
		c.UsageDB = v
	}
	if v := os.Getenv("FOUNDRY_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) applyDefaults() {
	if c.Retry.MaxRetries == 0 {
		c.Retry.MaxRetries = 3
	}
	if c.Retry.InitialBackoff == 0 {
		c.Retry.InitialBackoff = Duration(time.Second)
	}
	if c.UsageDB == "" {
		c.UsageDB = "foundry-usage.db"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
