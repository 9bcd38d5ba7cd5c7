// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package services

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/blogrec/internal/logging"
	"github.com/tomtom215/blogrec/internal/recommend"
)

// Refresher runs one refresh check.
type Refresher interface {
	RefreshIfNeeded(ctx context.Context, now time.Time) (bool, error)
}

// RefreshServiceConfig configures the refresh schedule.
type RefreshServiceConfig struct {
	// RunOnStartup performs a check as soon as the service starts.
	RunOnStartup bool

	// Interval between checks. Default: 1h
	Interval time.Duration

	// Timeout bounds one cycle. Default: 30m
	Timeout time.Duration

	// RetryMax is how many times a retryable failure is retried before the
	// service waits for the next tick. Zero disables retries.
	RetryMax int

	// RetryBackoff is the first retry delay; it doubles per attempt.
	// Default: 5s
	RetryBackoff time.Duration

	// RetryMaxBackoff caps the retry delay. Default: 5m
	RetryMaxBackoff time.Duration
}

func (c *RefreshServiceConfig) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = time.Hour
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Minute
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 5 * time.Second
	}
	if c.RetryMaxBackoff < c.RetryBackoff {
		c.RetryMaxBackoff = max(5*time.Minute, c.RetryBackoff)
	}
}

// backoff returns the delay before retry attempt n (0-based):
// RetryBackoff * 2^n, capped at RetryMaxBackoff.
func (c *RefreshServiceConfig) backoff(attempt int) time.Duration {
	if attempt > 30 {
		return c.RetryMaxBackoff
	}
	d := time.Duration(float64(c.RetryBackoff) * math.Pow(2, float64(attempt)))
	if d <= 0 || d > c.RetryMaxBackoff {
		return c.RetryMaxBackoff
	}
	return d
}

// RefreshService runs the recommendation refresh cycle on a ticker.
//
// Retryable failures such as unavailable storage are retried with
// exponential backoff, up to RetryMax times, then left for the next tick.
// An overlapping refresh skips the tick. A corrupt checkpoint stops the
// service for good: training over it would discard the learned weights.
type RefreshService struct {
	refresher Refresher
	config    RefreshServiceConfig
	logger    zerolog.Logger
	now       func() time.Time
}

// NewRefreshService creates the service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRefreshService(refresher Refresher, cfg RefreshServiceConfig, logger zerolog.Logger) *RefreshService {
	cfg.applyDefaults()
	return &RefreshService{
		refresher: refresher,
		config:    cfg,
		logger:    logger.With().Str("service", "recommend-refresh").Logger(),
		now:       time.Now,
	}
}

// Serve implements suture.Service.
func (s *RefreshService) Serve(ctx context.Context) error {
	s.logger.Info().
		Bool("run_on_startup", s.config.RunOnStartup).
		Dur("interval", s.config.Interval).
		Msg("Refresh service starting")

	if s.config.RunOnStartup {
		if err := s.runOnce(ctx); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Refresh service stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := s.runOnce(ctx); err != nil {
				return err
			}
		}
	}
}

// runOnce returns an error only when the service must stop.
func (s *RefreshService) runOnce(ctx context.Context) error {
	ctx = logging.ContextWithNewCorrelationID(ctx)
	log := logging.Ctx(ctx, s.logger)

	for attempt := 0; ; attempt++ {
		err := s.attempt(ctx, log)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, recommend.ErrCheckpointCorruption):
			log.Error().Err(err).Msg("Checkpoint is corrupt, refresh halted until the checkpoint is repaired")
			return suture.ErrDoNotRestart
		case errors.Is(err, recommend.ErrRefreshInProgress):
			log.Debug().Msg("Refresh already running, skipping tick")
			return nil
		case ctx.Err() != nil:
			return nil
		case !recommend.IsRetryable(err) || attempt >= s.config.RetryMax:
			log.Warn().Err(err).Int("attempts", attempt+1).Msg("Refresh failed, will retry on next tick")
			return nil
		}

		delay := s.config.backoff(attempt)
		log.Warn().Err(err).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Msg("Refresh failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

// attempt runs one bounded refresh check.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func (s *RefreshService) attempt(ctx context.Context, log zerolog.Logger) error {
	cycleCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	start := time.Now()
	refreshed, err := s.refresher.RefreshIfNeeded(cycleCtx, s.now())
	if err != nil {
		return err
	}
	if refreshed {
		log.Info().Dur("duration", time.Since(start)).Msg("Recommendations refreshed")
	} else {
		log.Debug().Msg("No new ratings since last refresh")
	}
	return nil
}

func (s *RefreshService) String() string {
	return "recommend-refresh"
}
