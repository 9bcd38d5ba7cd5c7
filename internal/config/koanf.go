// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists config file locations in priority order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/blogrec/config.yaml",
	"/etc/blogrec/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:      "/data/blogrec.duckdb",
			MaxMemory: "1GB",
		},
		Checkpoint: CheckpointConfig{
			Path:         "/data/checkpoints",
			SyncWrites:   true,
			KeepVersions: 3,
		},
		Recommend: RecommendConfig{
			Enabled:              true,
			RefreshInterval:      time.Hour,
			RefreshOnStartup:     true,
			RefreshTimeout:       30 * time.Minute,
			RefreshRetryMax:      3,
			RefreshRetryBackoff:  5 * time.Second,
			ModelName:            "rbm_model",
			HiddenUnits:          1200,
			Epochs:               30,
			MinibatchSize:        350,
			KeepProb:             0.7,
			LearningRate:         0.004,
			TopK:                 10,
			TrainRatio:           0.75,
			Seed:                 42,
			PositiveThreshold:    0.5,
			SimilarityThreshold:  0.5,
			MinRatingsForSimilar: 3,
			PopularThreshold:     3.5,
			PopularLimit:         20,
			Timezone:             "Asia/Kolkata",
			Normalize: NormalizeConfig{
				RemoveStopwords: false,
				Lemmatize:       true,
				Stem:            false,
			},
		},
		Events: EventsConfig{
			Enabled:    true,
			Transport:  "gochannel",
			NATSURL:    "nats://127.0.0.1:4222",
			Topic:      "blogrec.actions",
			QueueGroup: "blogrec-ratings",
			DedupTTL:   10 * time.Minute,
			RetryMax:   3,
		},
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8000,
			Timeout:           30 * time.Second,
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadWithKoanf layers defaults, the config file and environment variables,
// unmarshals the result and validates it.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns CONFIG_PATH when it exists, else the first existing
// default path, else "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated env values.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) == 0 {
			continue
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
// Unlisted variables are ignored so unrelated environment does not leak
// into the configuration.
var envMappings = map[string]string{
	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	"checkpoint_path":          "checkpoint.path",
	"checkpoint_sync_writes":   "checkpoint.sync_writes",
	"checkpoint_keep_versions": "checkpoint.keep_versions",

	"recommend_enabled":                 "recommend.enabled",
	"recommend_refresh_interval":        "recommend.refresh_interval",
	"recommend_refresh_on_startup":      "recommend.refresh_on_startup",
	"recommend_refresh_timeout":         "recommend.refresh_timeout",
	"recommend_refresh_retry_max":       "recommend.refresh_retry_max",
	"recommend_refresh_retry_backoff":   "recommend.refresh_retry_backoff",
	"recommend_model_name":              "recommend.model_name",
	"recommend_hidden_units":            "recommend.hidden_units",
	"recommend_epochs":                  "recommend.epochs",
	"recommend_minibatch_size":          "recommend.minibatch_size",
	"recommend_keep_prob":               "recommend.keep_prob",
	"recommend_learning_rate":           "recommend.learning_rate",
	"recommend_top_k":                   "recommend.top_k",
	"recommend_train_ratio":             "recommend.train_ratio",
	"recommend_seed":                    "recommend.seed",
	"recommend_positive_threshold":      "recommend.positive_threshold",
	"recommend_similarity_threshold":    "recommend.similarity_threshold",
	"recommend_min_ratings_for_similar": "recommend.min_ratings_for_similar",
	"recommend_popular_threshold":       "recommend.popular_threshold",
	"recommend_popular_limit":           "recommend.popular_limit",
	"recommend_timezone":                "recommend.timezone",
	"normalize_remove_stopwords":        "recommend.normalize.remove_stopwords",
	"normalize_lemmatize":               "recommend.normalize.lemmatize",
	"normalize_stem":                    "recommend.normalize.stem",

	"events_enabled":     "events.enabled",
	"events_transport":   "events.transport",
	"nats_url":           "events.nats_url",
	"events_topic":       "events.topic",
	"events_queue_group": "events.queue_group",
	"events_dedup_ttl":   "events.dedup_ttl",
	"events_retry_max":   "events.retry_max",

	"http_host":           "server.host",
	"http_port":           "server.port",
	"http_timeout":        "server.timeout",
	"cors_origins":        "server.cors_origins",
	"rate_limit_requests": "server.rate_limit_requests",
	"rate_limit_window":   "server.rate_limit_window",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to its koanf path,
// returning "" for variables Blogrec does not read.
//
//   - DUCKDB_PATH -> database.path
//   - RECOMMEND_TOP_K -> recommend.top_k
//   - NATS_URL -> events.nats_url
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
