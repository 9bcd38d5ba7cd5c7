// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig verifies that defaultConfig() returns the production defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Database.Path != "/data/blogrec.duckdb" {
		t.Errorf("Database.Path = %q, want /data/blogrec.duckdb", cfg.Database.Path)
	}
	if cfg.Checkpoint.KeepVersions != 3 {
		t.Errorf("Checkpoint.KeepVersions = %d, want 3", cfg.Checkpoint.KeepVersions)
	}

	r := cfg.Recommend
	if r.HiddenUnits != 1200 {
		t.Errorf("Recommend.HiddenUnits = %d, want 1200", r.HiddenUnits)
	}
	if r.Epochs != 30 {
		t.Errorf("Recommend.Epochs = %d, want 30", r.Epochs)
	}
	if r.MinibatchSize != 350 {
		t.Errorf("Recommend.MinibatchSize = %d, want 350", r.MinibatchSize)
	}
	if r.KeepProb != 0.7 {
		t.Errorf("Recommend.KeepProb = %v, want 0.7", r.KeepProb)
	}
	if r.RefreshRetryMax != 3 || r.RefreshRetryBackoff != 5*time.Second {
		t.Errorf("refresh retry = %d/%v, want 3/5s", r.RefreshRetryMax, r.RefreshRetryBackoff)
	}
	if r.TopK != 10 {
		t.Errorf("Recommend.TopK = %d, want 10", r.TopK)
	}
	if r.SimilarityThreshold != 0.5 || r.PositiveThreshold != 0.5 {
		t.Errorf("thresholds = %v/%v, want 0.5/0.5", r.PositiveThreshold, r.SimilarityThreshold)
	}
	if r.Timezone != "Asia/Kolkata" {
		t.Errorf("Recommend.Timezone = %q, want Asia/Kolkata", r.Timezone)
	}
	if !r.Normalize.Lemmatize || r.Normalize.Stem || r.Normalize.RemoveStopwords {
		t.Errorf("Recommend.Normalize = %+v, want lemmatize only", r.Normalize)
	}

	if cfg.Events.Transport != "gochannel" {
		t.Errorf("Events.Transport = %q, want gochannel", cfg.Events.Transport)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig().Validate() = %v, want nil", err)
	}
}

// TestEnvTransformFunc verifies environment variable name transformations
func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"DUCKDB_PATH", "database.path"},
		{"CHECKPOINT_PATH", "checkpoint.path"},
		{"RECOMMEND_TOP_K", "recommend.top_k"},
		{"RECOMMEND_KEEP_PROB", "recommend.keep_prob"},
		{"NORMALIZE_STEM", "recommend.normalize.stem"},
		{"NATS_URL", "events.nats_url"},
		{"HTTP_PORT", "server.port"},
		{"CORS_ORIGINS", "server.cors_origins"},
		{"LOG_LEVEL", "logging.level"},
		{"log_format", "logging.format"},
		{"HOME", ""},
		{"PATH", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := envTransformFunc(tt.input); got != tt.expected {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFindConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	t.Run("no config file exists", func(t *testing.T) {
		t.Setenv(ConfigPathEnvVar, "")
		if result := findConfigFile(); result != "" {
			t.Errorf("findConfigFile() = %q, want empty string", result)
		}
	})

	t.Run("config.yaml exists", func(t *testing.T) {
		configPath := filepath.Join(tmpDir, "config.yaml")
		if err := os.WriteFile(configPath, []byte("logging:\n  level: info\n"), 0o600); err != nil {
			t.Fatalf("Failed to create config file: %v", err)
		}
		defer os.Remove(configPath)

		t.Setenv(ConfigPathEnvVar, "")
		if result := findConfigFile(); result != "config.yaml" {
			t.Errorf("findConfigFile() = %q, want config.yaml", result)
		}
	})

	t.Run("CONFIG_PATH env var takes precedence", func(t *testing.T) {
		customPath := filepath.Join(tmpDir, "custom.yaml")
		if err := os.WriteFile(customPath, []byte("logging:\n  level: info\n"), 0o600); err != nil {
			t.Fatalf("Failed to create custom config file: %v", err)
		}
		t.Setenv(ConfigPathEnvVar, customPath)
		if result := findConfigFile(); result != customPath {
			t.Errorf("findConfigFile() = %q, want %q", result, customPath)
		}
	})

	t.Run("CONFIG_PATH with missing file falls back", func(t *testing.T) {
		t.Setenv(ConfigPathEnvVar, "/non/existent/config.yaml")
		if result := findConfigFile(); result != "" {
			t.Errorf("findConfigFile() = %q, want empty string", result)
		}
	})
}

// TestLoadWithKoanfEnvVars tests loading configuration from environment variables
func TestLoadWithKoanfEnvVars(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(ConfigPathEnvVar, "")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("RECOMMEND_TOP_K", "5")
	t.Setenv("RECOMMEND_KEEP_PROB", "0.5")
	t.Setenv("RECOMMEND_REFRESH_INTERVAL", "15m")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Recommend.TopK != 5 {
		t.Errorf("Recommend.TopK = %d, want 5", cfg.Recommend.TopK)
	}
	if cfg.Recommend.KeepProb != 0.5 {
		t.Errorf("Recommend.KeepProb = %v, want 0.5", cfg.Recommend.KeepProb)
	}
	if cfg.Recommend.RefreshInterval != 15*time.Minute {
		t.Errorf("Recommend.RefreshInterval = %v, want 15m", cfg.Recommend.RefreshInterval)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("Server.CORSOrigins = %v, want two trimmed origins", cfg.Server.CORSOrigins)
	}

	// Defaults survive for unset values
	if cfg.Recommend.HiddenUnits != 1200 {
		t.Errorf("Recommend.HiddenUnits = %d, want 1200 (default)", cfg.Recommend.HiddenUnits)
	}
}

// TestLoadWithKoanfEnvOverridesFile tests that env vars override the config file
func TestLoadWithKoanfEnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)

	configContent := `
database:
  path: "/srv/blogrec.duckdb"
recommend:
  epochs: 12
  normalize:
    stem: true
server:
  port: 8888
logging:
  level: "warn"
`
	configPath := filepath.Join(tmpDir, "blogrec.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("Failed to create config file: %v", err)
	}

	t.Setenv(ConfigPathEnvVar, configPath)
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("LOG_LEVEL", "error")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Database.Path != "/srv/blogrec.duckdb" {
		t.Errorf("Database.Path = %q, want /srv/blogrec.duckdb (from file)", cfg.Database.Path)
	}
	if cfg.Recommend.Epochs != 12 {
		t.Errorf("Recommend.Epochs = %d, want 12 (from file)", cfg.Recommend.Epochs)
	}
	if !cfg.Recommend.Normalize.Stem || !cfg.Recommend.Normalize.Lemmatize {
		t.Errorf("Recommend.Normalize = %+v, want stem from file and lemmatize default", cfg.Recommend.Normalize)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999 (env override)", cfg.Server.Port)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Logging.Level = %q, want error (env override)", cfg.Logging.Level)
	}
}

// TestLoadWithKoanfValidation tests that invalid values are rejected
func TestLoadWithKoanfValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "invalid port",
			env:     map[string]string{"HTTP_PORT": "70000"},
			wantErr: "HTTP_PORT",
		},
		{
			name:    "invalid keep prob",
			env:     map[string]string{"RECOMMEND_KEEP_PROB": "1.5"},
			wantErr: "RECOMMEND_KEEP_PROB",
		},
		{
			name:    "invalid log level",
			env:     map[string]string{"LOG_LEVEL": "chatty"},
			wantErr: "LOG_LEVEL",
		},
		{
			name:    "unknown transport",
			env:     map[string]string{"EVENTS_TRANSPORT": "kafka"},
			wantErr: "EVENTS_TRANSPORT",
		},
		{
			name:    "nats transport with bad url",
			env:     map[string]string{"EVENTS_TRANSPORT": "nats", "NATS_URL": "http://broker:4222"},
			wantErr: "NATS_URL",
		},
		{
			name:    "negative refresh retries",
			env:     map[string]string{"RECOMMEND_REFRESH_RETRY_MAX": "-1"},
			wantErr: "RECOMMEND_REFRESH_RETRY_MAX",
		},
		{
			name:    "zero similarity threshold",
			env:     map[string]string{"RECOMMEND_SIMILARITY_THRESHOLD": "0"},
			wantErr: "RECOMMEND_SIMILARITY_THRESHOLD",
		},
		{
			name:    "zero positive threshold",
			env:     map[string]string{"RECOMMEND_POSITIVE_THRESHOLD": "0"},
			wantErr: "RECOMMEND_POSITIVE_THRESHOLD",
		},
		{
			name:    "train ratio out of range",
			env:     map[string]string{"RECOMMEND_TRAIN_RATIO": "1"},
			wantErr: "RECOMMEND_TRAIN_RATIO",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(ConfigPathEnvVar, "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := LoadWithKoanf()
			if err == nil {
				t.Fatalf("LoadWithKoanf() error = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadWithKoanf() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}
