// Package config handles the clusterlink daemon configuration.
//
// Config is stored at $XDG_CONFIG_HOME/clusterlink/config.yaml (defaults to
// ~/.config/clusterlink/config.yaml). A non-empty api.token means the user
// is logged in; the daemon re-reads the file on SIGHUP.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"clusterlink/internal/logging"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL      = "https://api.ultimaker.com"
	DefaultAPITimeout   = 30 * time.Second
	DefaultPollInterval = 50 * time.Second

	// minPollInterval keeps a misconfigured daemon from hammering the API.
	minPollInterval = 5 * time.Second
	dbFileName      = "metadata.db"
)

// API describes how to reach the cloud API.
type API struct {
	BaseURL string        `yaml:"base_url"`
	Token   string        `yaml:"token,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// Config is the daemon configuration file.
type Config struct {
	API           API           `yaml:"api"`
	PollInterval  time.Duration `yaml:"poll_interval,omitempty"`
	DataRoot      string        `yaml:"data_root,omitempty"`
	ActiveMachine string        `yaml:"active_machine,omitempty"`
	LogLevel      string        `yaml:"log_level,omitempty"`
	LogFormat     string        `yaml:"log_format,omitempty"`
}

// Path returns the config file location. It respects XDG_CONFIG_HOME,
// falling back to ~/.config/clusterlink/config.yaml.
func Path() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".config", "clusterlink", "config.yaml")
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "clusterlink", "config.yaml")
}

// DefaultDataRoot returns $XDG_DATA_HOME/clusterlink, falling back to
// ~/.local/share/clusterlink.
func DefaultDataRoot() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".local", "share", "clusterlink")
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, "clusterlink")
}

// Default returns a logged-out config with every default filled in.
func Default() *Config {
	cfg := &Config{}
	_ = cfg.Normalize()
	return cfg
}

// Load reads the config file at path. If the file does not exist, the
// default config is returned (not an error).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Normalize(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the config to path, creating directories as needed.
// The file holds the API token, so it is only readable by the owner.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Normalize fills in defaults and validates the result.
func (c *Config) Normalize() error {
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.DataRoot == "" {
		c.DataRoot = DefaultDataRoot()
	}
	if c.LogLevel == "" {
		c.LogLevel = logging.LevelInfo
	}
	if c.LogFormat == "" {
		c.LogFormat = logging.FormatText
	}

	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url %q must be an absolute http(s) URL", c.API.BaseURL)
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must be positive, got %s", c.API.Timeout)
	}
	if c.PollInterval < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval)
	}
	if !logging.ValidLevel(c.LogLevel) {
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	if c.LogFormat != logging.FormatText && c.LogFormat != logging.FormatJSON {
		return fmt.Errorf("invalid log_format %q", c.LogFormat)
	}
	return nil
}

// LoggedIn reports whether an API token is configured.
func (c *Config) LoggedIn() bool {
	return c.API.Token != ""
}

// DBPath returns the machine metadata database location.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataRoot, dbFileName)
}
