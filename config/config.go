// Package config loads the YAML connection defaults used by cmd/groundctl
// and by any embedder that wants file-driven Vehicle.Connect options
// instead of wiring vehicle.Options by hand.
//
// Grounded on this codebase's own internal/config/config.go: a plain
// struct tree decoded with gopkg.in/yaml.v3, defaulted field-by-field in
// Load.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level connection configuration.
type Config struct {
	Link       LinkConfig       `yaml:"link"`
	Heartbeat  HeartbeatConfig  `yaml:"heartbeat"`
	Streams    StreamsConfig    `yaml:"streams"`
	Parameters ParametersConfig `yaml:"parameters"`
	LogLevel   string           `yaml:"log_level"`
}

// LinkConfig describes the transport endpoint.
type LinkConfig struct {
	URI             string `yaml:"uri"` // e.g. "udpin:0.0.0.0:14550", "tcp:127.0.0.1:5760"
	SerialBaud      int    `yaml:"serial_baud"`
	SourceSystem    uint8  `yaml:"source_system"`
	SourceComponent uint8  `yaml:"source_component"`
}

// HeartbeatConfig controls connection-lifecycle timeouts.
type HeartbeatConfig struct {
	LivenessTimeoutSeconds int `yaml:"liveness_timeout_seconds"`
	ConnectTimeoutSeconds  int `yaml:"connect_timeout_seconds"`
}

// StreamsConfig controls the REQUEST_DATA_STREAM schedule issued on connect.
type StreamsConfig struct {
	BaseRateHz uint16 `yaml:"base_rate_hz"`
}

// ParametersConfig controls parameter set-with-ack retry behavior.
type ParametersConfig struct {
	SetRetries int `yaml:"set_retries"`
}

// Load reads and decodes a YAML config file, applying the defaults this
// library uses when a field is left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Link.SourceSystem == 0 {
		cfg.Link.SourceSystem = 255 // conventional ground-station system id
	}
	if cfg.Link.SourceComponent == 0 {
		cfg.Link.SourceComponent = 190 // MAV_COMP_ID_MISSIONPLANNER
	}
	if cfg.Link.SerialBaud == 0 {
		cfg.Link.SerialBaud = 115200
	}
	if cfg.Heartbeat.LivenessTimeoutSeconds == 0 {
		cfg.Heartbeat.LivenessTimeoutSeconds = 5
	}
	if cfg.Heartbeat.ConnectTimeoutSeconds == 0 {
		cfg.Heartbeat.ConnectTimeoutSeconds = 30
	}
	if cfg.Streams.BaseRateHz == 0 {
		cfg.Streams.BaseRateHz = 4
	}
	if cfg.Parameters.SetRetries == 0 {
		cfg.Parameters.SetRetries = 3
	}
}

// LivenessTimeout returns HeartbeatConfig.LivenessTimeoutSeconds as a
// time.Duration.
func (c HeartbeatConfig) LivenessTimeout() time.Duration {
	return time.Duration(c.LivenessTimeoutSeconds) * time.Second
}

// ConnectTimeout returns HeartbeatConfig.ConnectTimeoutSeconds as a
// time.Duration.
func (c HeartbeatConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}
