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

// CorpusSyncer normalizes posts added since the last sync.
type CorpusSyncer interface {
	SyncCorpus(ctx context.Context) (int, error)
}

// CorpusSyncService keeps the content similarity snapshot current between
// refresh cycles. It syncs once at start and then every interval.
type CorpusSyncService struct {
	syncer   CorpusSyncer
	interval time.Duration
	logger   zerolog.Logger
}

// NewCorpusSyncService creates the service. A non-positive interval means 5m.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewCorpusSyncService(syncer CorpusSyncer, interval time.Duration, logger zerolog.Logger) *CorpusSyncService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &CorpusSyncService{
		syncer:   syncer,
		interval: interval,
		logger:   logger.With().Str("service", "corpus-sync").Logger(),
	}
}

// Serve implements suture.Service.
func (s *CorpusSyncService) Serve(ctx context.Context) error {
	s.sync(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sync(ctx)
		}
	}
}

func (s *CorpusSyncService) sync(ctx context.Context) {
	n, err := s.syncer.SyncCorpus(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn().Err(err).Msg("Corpus sync failed")
		}
		return
	}
	if n > 0 {
		s.logger.Info().Int("items", n).Msg("Normalized new posts")
	}
}

func (s *CorpusSyncService) String() string {
	return "corpus-sync"
}
