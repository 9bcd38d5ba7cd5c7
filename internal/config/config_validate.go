// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateDatabase,
		c.validateCheckpoint,
		c.validateRecommend,
		c.validateEvents,
		c.validateServer,
		c.validateLogging,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DUCKDB_PATH is required")
	}
	if c.Database.Threads < 0 {
		return fmt.Errorf("DUCKDB_THREADS must be >= 0, got %d", c.Database.Threads)
	}
	return nil
}

func (c *Config) validateCheckpoint() error {
	if c.Checkpoint.Path == "" {
		return fmt.Errorf("CHECKPOINT_PATH is required")
	}
	if c.Checkpoint.KeepVersions < 1 {
		return fmt.Errorf("CHECKPOINT_KEEP_VERSIONS must be >= 1, got %d", c.Checkpoint.KeepVersions)
	}
	return nil
}

func (c *Config) validateRecommend() error {
	r := &c.Recommend
	if r.ModelName == "" {
		return fmt.Errorf("RECOMMEND_MODEL_NAME is required")
	}
	if r.Enabled && r.RefreshInterval < time.Second {
		return fmt.Errorf("RECOMMEND_REFRESH_INTERVAL must be at least 1s, got %v", r.RefreshInterval)
	}
	if r.RefreshRetryMax < 0 {
		return fmt.Errorf("RECOMMEND_REFRESH_RETRY_MAX must be >= 0, got %d", r.RefreshRetryMax)
	}
	if r.RefreshRetryBackoff <= 0 {
		return fmt.Errorf("RECOMMEND_REFRESH_RETRY_BACKOFF must be positive, got %v", r.RefreshRetryBackoff)
	}
	if r.HiddenUnits < 1 {
		return fmt.Errorf("RECOMMEND_HIDDEN_UNITS must be positive, got %d", r.HiddenUnits)
	}
	if r.Epochs < 1 {
		return fmt.Errorf("RECOMMEND_EPOCHS must be positive, got %d", r.Epochs)
	}
	if r.MinibatchSize < 1 {
		return fmt.Errorf("RECOMMEND_MINIBATCH_SIZE must be positive, got %d", r.MinibatchSize)
	}
	if r.KeepProb <= 0 || r.KeepProb > 1 {
		return fmt.Errorf("RECOMMEND_KEEP_PROB must be in (0, 1], got %v", r.KeepProb)
	}
	if r.LearningRate <= 0 {
		return fmt.Errorf("RECOMMEND_LEARNING_RATE must be positive, got %v", r.LearningRate)
	}
	if r.TopK < 1 {
		return fmt.Errorf("RECOMMEND_TOP_K must be positive, got %d", r.TopK)
	}
	if r.TrainRatio <= 0 || r.TrainRatio >= 1 {
		return fmt.Errorf("RECOMMEND_TRAIN_RATIO must be in (0, 1), got %v", r.TrainRatio)
	}
	if r.PositiveThreshold <= 0 {
		return fmt.Errorf("RECOMMEND_POSITIVE_THRESHOLD must be positive, got %v", r.PositiveThreshold)
	}
	if r.SimilarityThreshold <= 0 || r.SimilarityThreshold >= 1 {
		return fmt.Errorf("RECOMMEND_SIMILARITY_THRESHOLD must be in (0, 1), got %v", r.SimilarityThreshold)
	}
	if r.Timezone == "" {
		return fmt.Errorf("RECOMMEND_TIMEZONE is required")
	}
	return nil
}

func (c *Config) validateEvents() error {
	if !c.Events.Enabled {
		return nil
	}
	switch c.Events.Transport {
	case "gochannel":
	case "nats":
		if err := validateNATSURL(c.Events.NATSURL); err != nil {
			return fmt.Errorf("NATS_URL is invalid: %w", err)
		}
	default:
		return fmt.Errorf("EVENTS_TRANSPORT must be gochannel or nats, got %q", c.Events.Transport)
	}
	if c.Events.Topic == "" {
		return fmt.Errorf("EVENTS_TOPIC is required when events are enabled")
	}
	if c.Events.RetryMax < 0 {
		return fmt.Errorf("EVENTS_RETRY_MAX must be >= 0, got %d", c.Events.RetryMax)
	}
	return nil
}

// validateNATSURL accepts nats, tls, ws and wss URLs with a host.
func validateNATSURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}
	switch parsed.Scheme {
	case "nats", "tls", "ws", "wss":
	default:
		return fmt.Errorf("scheme must be nats, tls, ws, or wss, got: %s", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("host is required (e.g., localhost:4222)")
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %v", c.Server.Timeout)
	}
	if c.Server.RateLimitRequests < 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be >= 0, got %d", c.Server.RateLimitRequests)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal, panic, disabled, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
