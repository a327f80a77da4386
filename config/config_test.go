package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
link:
  uri: "udpin:0.0.0.0:14550"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Link.URI != "udpin:0.0.0.0:14550" {
		t.Errorf("URI = %q, want udpin:0.0.0.0:14550", cfg.Link.URI)
	}
	if cfg.Link.SourceSystem != 255 {
		t.Errorf("SourceSystem = %d, want 255", cfg.Link.SourceSystem)
	}
	if cfg.Link.SourceComponent != 190 {
		t.Errorf("SourceComponent = %d, want 190", cfg.Link.SourceComponent)
	}
	if cfg.Link.SerialBaud != 115200 {
		t.Errorf("SerialBaud = %d, want 115200", cfg.Link.SerialBaud)
	}
	if cfg.Heartbeat.LivenessTimeoutSeconds != 5 {
		t.Errorf("LivenessTimeoutSeconds = %d, want 5", cfg.Heartbeat.LivenessTimeoutSeconds)
	}
	if cfg.Heartbeat.ConnectTimeoutSeconds != 30 {
		t.Errorf("ConnectTimeoutSeconds = %d, want 30", cfg.Heartbeat.ConnectTimeoutSeconds)
	}
	if cfg.Streams.BaseRateHz != 4 {
		t.Errorf("BaseRateHz = %d, want 4", cfg.Streams.BaseRateHz)
	}
	if cfg.Parameters.SetRetries != 3 {
		t.Errorf("SetRetries = %d, want 3", cfg.Parameters.SetRetries)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoad_ExplicitValuesOverrideDefaults(t *testing.T) {
	path := writeTempConfig(t, `
link:
  uri: "tcp:127.0.0.1:5760"
  source_system: 1
  source_component: 1
heartbeat:
  liveness_timeout_seconds: 10
  connect_timeout_seconds: 60
streams:
  base_rate_hz: 10
parameters:
  set_retries: 5
log_level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Link.SourceSystem != 1 || cfg.Link.SourceComponent != 1 {
		t.Errorf("source ids = %d/%d, want 1/1", cfg.Link.SourceSystem, cfg.Link.SourceComponent)
	}
	if cfg.Heartbeat.LivenessTimeoutSeconds != 10 {
		t.Errorf("LivenessTimeoutSeconds = %d, want 10", cfg.Heartbeat.LivenessTimeoutSeconds)
	}
	if cfg.Streams.BaseRateHz != 10 {
		t.Errorf("BaseRateHz = %d, want 10", cfg.Streams.BaseRateHz)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load on a missing file should return an error")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTempConfig(t, "link: [this is not a mapping")
	if _, err := Load(path); err == nil {
		t.Error("Load on malformed YAML should return an error")
	}
}

func TestHeartbeatConfig_DurationHelpers(t *testing.T) {
	hb := HeartbeatConfig{LivenessTimeoutSeconds: 5, ConnectTimeoutSeconds: 30}
	if hb.LivenessTimeout() != 5*time.Second {
		t.Errorf("LivenessTimeout() = %v, want 5s", hb.LivenessTimeout())
	}
	if hb.ConnectTimeout() != 30*time.Second {
		t.Errorf("ConnectTimeout() = %v, want 30s", hb.ConnectTimeout())
	}
}
