// Package config handles configuration loading and saving.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configDirName  = ".mordomo"
	configFileName = "config.yaml"
)

var configDirOverride string

// SetConfigDir overrides the config directory for the current process.
// Empty value clears the override.
func SetConfigDir(dir string) {
	configDirOverride = strings.TrimSpace(dir)
}

// ConfigDir returns the directory holding the config file and the
// assistant's local state.
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, configDirName), nil
}

// ConfigPath returns the full path of the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Config is the root configuration structure.
type Config struct {
	HomeAssistant HomeAssistantConfig `json:"homeassistant" yaml:"homeassistant"`
	Scheduler     SchedulerConfig     `json:"scheduler,omitempty" yaml:"scheduler,omitempty"`
	Logging       LoggingConfig       `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// HomeAssistantConfig contains connection settings for the Home
// Assistant instance.
type HomeAssistantConfig struct {
	BaseURL string `json:"baseURL" yaml:"baseURL"`
	Token   string `json:"token" yaml:"token"`                         // long-lived access token
	Timeout int    `json:"timeout,omitempty" yaml:"timeout,omitempty"` // seconds
}

// SchedulerConfig contains job scheduler settings.
type SchedulerConfig struct {
	StorePath      string `json:"storePath,omitempty" yaml:"storePath,omitempty"`           // relative paths resolve under the config dir
	ReloadInterval int    `json:"reloadInterval,omitempty" yaml:"reloadInterval,omitempty"` // seconds between store reloads
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Enabled *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Level   string `json:"level,omitempty" yaml:"level,omitempty"`   // debug, info, warn, error
	Stdout  bool   `json:"stdout,omitempty" yaml:"stdout,omitempty"` // log to stdout
	File    string `json:"file,omitempty" yaml:"file,omitempty"`     // log file path
}

// Load reads the config file and applies defaults.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Save writes the config file, creating the config directory if needed.
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// JobStorePath resolves the scheduler store path. Relative paths live
// under the config directory, "~" expands to the home directory.
func (c *Config) JobStorePath() (string, error) {
	path := strings.TrimSpace(c.Scheduler.StorePath)
	if path == "" {
		path = defaultStoreFile
	}
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	if filepath.IsAbs(path) {
		return path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, path), nil
}

// RequestTimeout returns the Home Assistant request timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.HomeAssistant.Timeout) * time.Second
}

// StoreReloadInterval returns how often the running scheduler re-reads
// the job store to pick up external edits.
func (c *Config) StoreReloadInterval() time.Duration {
	return time.Duration(c.Scheduler.ReloadInterval) * time.Second
}
