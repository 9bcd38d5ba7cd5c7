// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

// Package config loads Blogrec configuration with Koanf v2.
//
// Loading order (highest priority wins):
//  1. Environment variables (see envTransformFunc for the names)
//  2. Optional YAML file (config.yaml, or the path in CONFIG_PATH)
//  3. Built-in defaults (defaultConfig)
//
// Config is immutable after Load and safe for concurrent reads.
package config

import "time"

// Config holds all application configuration.
type Config struct {
	Database   DatabaseConfig   `koanf:"database"`
	Checkpoint CheckpointConfig `koanf:"checkpoint"`
	Recommend  RecommendConfig  `koanf:"recommend"`
	Events     EventsConfig     `koanf:"events"`
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// DatabaseConfig configures the DuckDB file holding the ratings ledger,
// the item corpus and the recommendation cache.
//
// Environment Variables:
//   - DUCKDB_PATH: database file (default: /data/blogrec.duckdb)
//   - DUCKDB_MAX_MEMORY: DuckDB memory limit (default: 1GB)
//   - DUCKDB_THREADS: worker threads, 0 = NumCPU (default: 0)
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// CheckpointConfig configures the BadgerDB store for RBM checkpoints.
//
// Environment Variables:
//   - CHECKPOINT_PATH: badger directory (default: /data/checkpoints)
//   - CHECKPOINT_SYNC_WRITES: fsync every write (default: true)
//   - CHECKPOINT_KEEP_VERSIONS: versions retained per model (default: 3)
type CheckpointConfig struct {
	Path         string `koanf:"path"`
	SyncWrites   bool   `koanf:"sync_writes"`
	KeepVersions int    `koanf:"keep_versions"`
}

// RecommendConfig holds the recommendation pipeline settings.
//
// The RBM hyperparameters default to the values the production model was
// first trained with; changing HiddenUnits or the item corpus shape makes
// existing checkpoints incompatible (they are reported as corrupt, not
// silently retrained).
type RecommendConfig struct {
	// Enabled turns the scheduled refresh cycle on.
	Enabled bool `koanf:"enabled"`

	// RefreshInterval is how often the refresh service checks for new ratings.
	// Default: 1h
	RefreshInterval time.Duration `koanf:"refresh_interval"`

	// RefreshOnStartup runs one refresh check when the service starts.
	RefreshOnStartup bool `koanf:"refresh_on_startup"`

	// RefreshTimeout bounds a single refresh cycle.
	// Default: 30m
	RefreshTimeout time.Duration `koanf:"refresh_timeout"`

	// RefreshRetryMax and RefreshRetryBackoff bound the exponential retry
	// of a failed cycle before the next interval. Zero retries disables it.
	// Default: 3 retries starting at 5s
	RefreshRetryMax     int           `koanf:"refresh_retry_max"`
	RefreshRetryBackoff time.Duration `koanf:"refresh_retry_backoff"`

	// ModelName keys checkpoints in the checkpoint store.
	ModelName string `koanf:"model_name"`

	HiddenUnits   int     `koanf:"hidden_units"`
	Epochs        int     `koanf:"epochs"`
	MinibatchSize int     `koanf:"minibatch_size"`
	KeepProb      float64 `koanf:"keep_prob"`
	LearningRate  float64 `koanf:"learning_rate"`

	// TopK is the number of cached recommendations per user.
	TopK int `koanf:"top_k"`

	// TrainRatio is the per-user share of ratings placed in the train split.
	TrainRatio float64 `koanf:"train_ratio"`

	// Seed drives the train/test split and weight initialisation.
	Seed uint64 `koanf:"seed"`

	// PositiveThreshold is the minimum strength for a rating to seed
	// content similarity.
	PositiveThreshold float64 `koanf:"positive_threshold"`

	// SimilarityThreshold is the exclusive cosine cutoff for similar items.
	SimilarityThreshold float64 `koanf:"similarity_threshold"`

	// MinRatingsForSimilar is the history length below which the similar
	// items endpoint answers with an empty list.
	MinRatingsForSimilar int `koanf:"min_ratings_for_similar"`

	// PopularThreshold is the exclusive strength cutoff for the popular fallback.
	PopularThreshold float64 `koanf:"popular_threshold"`

	// PopularLimit caps the popular fallback list.
	PopularLimit int `koanf:"popular_limit"`

	// Timezone is the reference zone for ledger timestamps.
	Timezone string `koanf:"timezone"`

	Normalize NormalizeConfig `koanf:"normalize"`
}

// NormalizeConfig selects the text normalizer steps used for the corpus.
type NormalizeConfig struct {
	RemoveStopwords bool `koanf:"remove_stopwords"`
	Lemmatize       bool `koanf:"lemmatize"`
	Stem            bool `koanf:"stem"`
}

// EventsConfig configures the action event pipeline.
//
// With transport "gochannel" events stay in process; with "nats" they are
// published to and consumed from a NATS server through watermill-nats.
type EventsConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Transport  string        `koanf:"transport"`
	NATSURL    string        `koanf:"nats_url"`
	Topic      string        `koanf:"topic"`
	QueueGroup string        `koanf:"queue_group"`
	DedupTTL   time.Duration `koanf:"dedup_ttl"`
	RetryMax   int           `koanf:"retry_max"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              int           `koanf:"port"`
	Timeout           time.Duration `koanf:"timeout"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig configures the global zerolog logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Load reads configuration from defaults, the optional config file and the
// environment, then validates it.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
