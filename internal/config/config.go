// Package config provides workspace configuration for revq.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Backends a workspace can read commits from.
const (
	BackendNative = "native"
	BackendGit    = "git"
)

// Config holds workspace configuration.
type Config struct {
	// Backend is where commits live: "native" (sqlite) or "git".
	Backend string `yaml:"backend"`
	// GitPath is the Git repository path for the git backend, relative to the
	// workspace root unless absolute.
	GitPath string `yaml:"git_path,omitempty"`
	// DefaultRevset is evaluated by "log" when no revset is given.
	DefaultRevset string `yaml:"default_revset"`
	// ShortIDLength is the number of hex digits shown for commit ids.
	ShortIDLength int `yaml:"short_id_length"`
	// LogLimit caps the number of commits "log" prints; 0 means no limit.
	LogLimit int `yaml:"log_limit"`
	// Debug enables debug logging.
	Debug bool `yaml:"debug,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Backend:       BackendNative,
		DefaultRevset: "*:@",
		ShortIDLength: 12,
		LogLimit:      0,
	}
}

// Load reads the YAML file at path over the defaults, then applies REVQ_*
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Backend = getEnv("REVQ_BACKEND", c.Backend)
	c.GitPath = getEnv("REVQ_GIT_PATH", c.GitPath)
	c.DefaultRevset = getEnv("REVQ_DEFAULT_REVSET", c.DefaultRevset)
	c.ShortIDLength = getEnvInt("REVQ_SHORT_ID_LENGTH", c.ShortIDLength)
	c.LogLimit = getEnvInt("REVQ_LOG_LIMIT", c.LogLimit)
	c.Debug = getEnvBool("REVQ_DEBUG", c.Debug)
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendNative:
	case BackendGit:
		if c.GitPath == "" {
			return fmt.Errorf("config: backend %q requires git_path", c.Backend)
		}
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	if c.ShortIDLength < 1 {
		return fmt.Errorf("config: short_id_length must be positive, got %d", c.ShortIDLength)
	}
	if c.LogLimit < 0 {
		return fmt.Errorf("config: log_limit must not be negative, got %d", c.LogLimit)
	}
	if c.DefaultRevset == "" {
		return fmt.Errorf("config: default_revset must not be empty")
	}
	return nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
