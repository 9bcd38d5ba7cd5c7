// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// GarbageCollector reclaims space in the checkpoint store.
type GarbageCollector interface {
	RunGC(ctx context.Context, discardRatio float64) error
}

// DefaultGCDiscardRatio is the share of stale data a value log file needs
// before badger rewrites it.
const DefaultGCDiscardRatio = 0.5

// CheckpointGCService runs value log GC on the checkpoint store every
// interval. Pruned checkpoints are large, so their space is only returned
// to the filesystem by this pass.
type CheckpointGCService struct {
	gc       GarbageCollector
	interval time.Duration
	logger   zerolog.Logger
}

// NewCheckpointGCService creates the service. A non-positive interval means 1h.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewCheckpointGCService(gc GarbageCollector, interval time.Duration, logger zerolog.Logger) *CheckpointGCService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &CheckpointGCService{
		gc:       gc,
		interval: interval,
		logger:   logger.With().Str("service", "checkpoint-gc").Logger(),
	}
}

// Serve implements suture.Service.
func (s *CheckpointGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			if err := s.gc.RunGC(ctx, DefaultGCDiscardRatio); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Warn().Err(err).Msg("Checkpoint GC failed")
				continue
			}
			s.logger.Debug().Dur("duration", time.Since(start)).Msg("Checkpoint GC complete")
		}
	}
}

func (s *CheckpointGCService) String() string {
	return "checkpoint-gc"
}
