// Package config holds the immutable runtime settings for remotestat.
//
// Values come from REMOTESTAT_* environment variables and may be overridden
// by command-line flags before Validate is called. The struct is treated as
// read-only once validated.
package config

import (
	"errors"
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Settings describes the connection target and inspection defaults.
type Settings struct {
	// Host is the remote hostname or IP address.
	Host string `envconfig:"HOST"`
	// User is the SSH login name.
	User string `envconfig:"USER" default:"forge"`
	// Key is the path to the SSH private key, "~" allowed.
	Key string `envconfig:"KEY"`
	// Port is the SSH port.
	Port int `envconfig:"PORT" default:"22"`
	// Directories are the paths summarized by the default report.
	Directories []string `envconfig:"DIRECTORIES"`
	// LogLevel sets the zap level (debug, info, warn, error).
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads settings from the environment.
func Load() (Settings, error) {
	var s Settings
	if err := envconfig.Process("REMOTESTAT", &s); err != nil {
		return Settings{}, fmt.Errorf("loading config from environment: %w", err)
	}

	return s, nil
}

// Validate checks that the settings are complete enough to connect.
func (s Settings) Validate() error {
	if s.Host == "" {
		return errors.New("host is required (flag --host or REMOTESTAT_HOST)")
	}

	if s.Key == "" {
		return errors.New("ssh key path is required (flag --key or REMOTESTAT_KEY)")
	}

	if s.User == "" {
		return errors.New("user cannot be empty")
	}

	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("invalid port %d", s.Port)
	}

	return nil
}

// ReportDirectories returns the configured summarization targets, falling
// back to the default set when none are configured.
func (s Settings) ReportDirectories() []string {
	if len(s.Directories) > 0 {
		return s.Directories
	}

	return []string{
		fmt.Sprintf("/home/%s", s.User),
		"/var/log",
		"/opt",
	}
}
