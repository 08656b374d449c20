package config

import (
	"strings"

	"github.com/mordomohq/mordomo/logger"
)

const (
	defaultBaseURL        = "http://homeassistant.local:8123"
	defaultTimeoutSeconds = 15
	defaultStoreFile      = "jobs.json"
	defaultReloadSeconds  = 60
)

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		HomeAssistant: HomeAssistantConfig{
			BaseURL: defaultBaseURL,
			Token:   "",
			Timeout: defaultTimeoutSeconds,
		},
		Scheduler: SchedulerConfig{
			StorePath:      defaultStoreFile,
			ReloadInterval: defaultReloadSeconds,
		},
		Logging: defaultLoggingConfig(),
	}
}

func defaultLoggingConfig() LoggingConfig {
	enabled := true
	return LoggingConfig{
		Enabled: &enabled,
		Level:   "info",
		Stdout:  true,
		File:    "logs/mordomo.log",
	}
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.HomeAssistant.BaseURL) == "" {
		c.HomeAssistant.BaseURL = defaultBaseURL
	}
	if c.HomeAssistant.Timeout <= 0 {
		c.HomeAssistant.Timeout = defaultTimeoutSeconds
	}

	if strings.TrimSpace(c.Scheduler.StorePath) == "" {
		c.Scheduler.StorePath = defaultStoreFile
	}
	if c.Scheduler.ReloadInterval <= 0 {
		c.Scheduler.ReloadInterval = defaultReloadSeconds
	}

	def := defaultLoggingConfig()
	if c.Logging == (LoggingConfig{}) {
		c.Logging = def
		return
	}

	hasAny := c.Logging.Level != "" || c.Logging.File != "" || c.Logging.Stdout
	if c.Logging.Enabled == nil && hasAny {
		enabled := true
		c.Logging.Enabled = &enabled
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Level
	}
	if c.Logging.File == "" {
		c.Logging.File = def.File
	}
	if !c.Logging.Stdout && c.Logging.File == "" {
		c.Logging.Stdout = def.Stdout
	}
	if c.Logging.Enabled == nil {
		c.Logging.Enabled = def.Enabled
	}
}

// BuildLoggerConfig converts the logging section into the logger's own
// config type. A nil Enabled means on.
func (c *Config) BuildLoggerConfig() logger.Config {
	enabled := true
	if c.Logging.Enabled != nil {
		enabled = *c.Logging.Enabled
	}
	return logger.Config{
		Enabled: enabled,
		Level:   c.Logging.Level,
		Stdout:  c.Logging.Stdout,
		File:    c.Logging.File,
	}
}
