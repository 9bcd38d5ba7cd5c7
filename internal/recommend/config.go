// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package recommend

import (
	"fmt"
	"time"
)

// Config contains the engine settings. Model hyperparameters live with the
// model implementation.
type Config struct {
	// ModelName keys checkpoints.
	ModelName string

	// TopK is the number of cached recommendations per user.
	TopK int

	// TrainRatio is the per-user share of ratings in the train split.
	TrainRatio float64

	// Seed drives the stratified split.
	Seed uint64

	// MinRatingsForSimilar is the history length below which similar-item
	// queries answer with an empty list.
	MinRatingsForSimilar int

	// PopularThreshold is the exclusive strength cutoff for the popular list.
	PopularThreshold float64

	// PopularLimit caps popular fallback lists.
	PopularLimit int

	// KeepVersions is how many checkpoint versions survive a prune.
	KeepVersions int

	// RefreshTimeout bounds one refresh cycle.
	RefreshTimeout time.Duration

	// Zone is the reference time zone for timestamps.
	Zone *time.Location
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		ModelName:            "rbm_model",
		TopK:                 10,
		TrainRatio:           0.75,
		Seed:                 42,
		MinRatingsForSimilar: 3,
		PopularThreshold:     StrengthFavorited,
		PopularLimit:         20,
		KeepVersions:         3,
		RefreshTimeout:       30 * time.Minute,
		Zone:                 LoadZone(DefaultZoneName),
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.ModelName == "" {
		return fmt.Errorf("model name is required")
	}
	if c.TopK < 1 {
		return fmt.Errorf("top k must be positive, got %d", c.TopK)
	}
	if c.TrainRatio <= 0 || c.TrainRatio >= 1 {
		return fmt.Errorf("train ratio must be in (0, 1), got %v", c.TrainRatio)
	}
	if c.MinRatingsForSimilar < 0 {
		return fmt.Errorf("min ratings for similar must be >= 0, got %d", c.MinRatingsForSimilar)
	}
	if c.PopularLimit < 1 {
		return fmt.Errorf("popular limit must be positive, got %d", c.PopularLimit)
	}
	if c.KeepVersions < 1 {
		return fmt.Errorf("keep versions must be >= 1, got %d", c.KeepVersions)
	}
	if c.RefreshTimeout <= 0 {
		return fmt.Errorf("refresh timeout must be positive, got %v", c.RefreshTimeout)
	}
	return nil
}
