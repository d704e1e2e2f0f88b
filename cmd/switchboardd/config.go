// Copyright 2026 The Switchboard Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration, loaded from a single YAML file.
// There is no automatic discovery and no fallback chain: the file
// named on the command line is the whole configuration.
type Config struct {
	// SocketPath is where the broker listens.
	SocketPath string `yaml:"socket_path"`

	// PolicyDirs are the directories loaded at startup, in order.
	PolicyDirs []string `yaml:"policy_dirs"`

	// ExtraPolicyDir is an optional override directory merged after
	// PolicyDirs (the usual use is a developer-mode drop-in). A
	// missing directory is not an error.
	ExtraPolicyDir string `yaml:"extra_policy_dir"`

	// Permissive disables ownership and requester enforcement while
	// keeping service existence checks.
	Permissive bool `yaml:"permissive"`

	// AllowAdHocServices lets permissive-mode peers register and
	// request service names no policy declares.
	AllowAdHocServices bool `yaml:"allow_ad_hoc_services"`

	// MaxPendingRequests caps each service's pending queue. Zero
	// means unbounded.
	MaxPendingRequests int `yaml:"max_pending_requests"`

	// MetricsAddress, when set, serves Prometheus metrics over HTTP
	// (e.g. "127.0.0.1:9323").
	MetricsAddress string `yaml:"metrics_address"`

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string `yaml:"log_level"`
}

// defaultSocketPath mirrors the packaged systemd unit.
const defaultSocketPath = "/run/switchboard/broker.sock"

// LoadConfig reads and validates the daemon configuration.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	config := &Config{
		SocketPath: defaultSocketPath,
		LogLevel:   "info",
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return config, nil
}

// Validate rejects configurations the daemon cannot serve.
func (c *Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("socket_path must not be empty")
	}
	if len(c.PolicyDirs) == 0 && !c.Permissive {
		return fmt.Errorf("policy_dirs must not be empty outside permissive mode")
	}
	if c.AllowAdHocServices && !c.Permissive {
		return fmt.Errorf("allow_ad_hoc_services requires permissive mode")
	}
	if c.MaxPendingRequests < 0 {
		return fmt.Errorf("max_pending_requests must not be negative")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel maps the configured log level to slog.
func (c *Config) SlogLevel() (slog.Level, error) {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
}
