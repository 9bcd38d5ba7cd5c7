// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package recommend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/blogrec/internal/metrics"
)

// ModelState is the lifecycle position of a ModelManager.
type ModelState int

const (
	StateUninitialized ModelState = iota
	StateLoaded
	StateFitting
	StateFitted
	StatePersisted
)

func (s ModelState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoaded:
		return "loaded"
	case StateFitting:
		return "fitting"
	case StateFitted:
		return "fitted"
	case StatePersisted:
		return "persisted"
	default:
		return "unknown"
	}
}

// ModelManager owns one model through a refresh cycle:
// load checkpoint, fit, predict, persist. It is not reused across cycles.
type ModelManager struct {
	mu sync.Mutex

	model   Model
	state   ModelState
	version int // version of the loaded checkpoint, 0 when cold

	stats     FitStats
	trainedAt time.Time
	users     int
	items     int
	ratings   int
	values    []float64

	logger zerolog.Logger
}

// NewModelManager wraps a fresh model.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewModelManager(model Model, logger zerolog.Logger) *ModelManager {
	return &ModelManager{
		model:  model,
		logger: logger.With().Str("component", "model").Str("model", model.Name()).Logger(),
	}
}

// State returns the current lifecycle state.
func (m *ModelManager) State() ModelState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Version returns the checkpoint version this manager resumed from or last
// persisted.
func (m *ModelManager) Version() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.version
}

// Stats returns the last fit statistics.
func (m *ModelManager) Stats() FitStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Load restores the latest checkpoint for name. A missing checkpoint
// returns an error wrapping ErrCheckpointMissing and leaves the manager
// Uninitialized so the caller can decide between cold start and failure.
func (m *ModelManager) Load(ctx context.Context, store CheckpointStore, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateUninitialized {
		return fmt.Errorf("load in state %s", m.state)
	}

	target := m.model.NewState()
	meta, err := store.Load(ctx, name, 0, target)
	metrics.RecordCheckpoint("load", err)
	if err != nil {
		if errors.Is(err, ErrCheckpointMissing) {
			return err
		}
		return fmt.Errorf("load checkpoint %s: %w", name, err)
	}

	if err := m.model.Restore(target); err != nil {
		return fmt.Errorf("restore checkpoint %s v%d: %w", name, meta.Version, err)
	}

	m.version = meta.Version
	m.state = StateLoaded
	m.logger.Info().
		Int("version", meta.Version).
		Int("items", meta.ItemCount).
		Time("trained_at", meta.TrainedAt).
		Msg("checkpoint loaded")
	return nil
}

// Fit trains the model. From Uninitialized it trains from scratch, from
// Loaded it resumes the restored parameters.
func (m *ModelManager) Fit(ctx context.Context, train *AffinityMatrix) error {
	m.mu.Lock()
	if m.state != StateUninitialized && m.state != StateLoaded {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("fit in state %s", state)
	}
	prev := m.state
	m.state = StateFitting
	m.mu.Unlock()

	stats, err := m.model.Fit(ctx, train)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.state = prev
		return fmt.Errorf("fit %s: %w", m.model.Name(), err)
	}

	m.stats = stats
	m.trainedAt = time.Now()
	m.users = train.NumUsers()
	m.items = train.NumItems()
	m.ratings = train.Nonzero()
	m.values = train.RatingValues()
	m.state = StateFitted

	metrics.RecordEpochError(stats.FinalError)
	m.logger.Info().
		Int("epochs", stats.Epochs).
		Bool("resumed", stats.Resumed).
		Float64("final_error", stats.FinalError).
		Int64("duration_ms", stats.Duration.Milliseconds()).
		Msg("model fitted")
	return nil
}

// PredictTopK ranks at most k items per test user. Valid once fitted.
func (m *ModelManager) PredictTopK(ctx context.Context, test *AffinityMatrix, k int) (map[int][]ScoredItem, error) {
	m.mu.Lock()
	state := m.state
	m.mu.Unlock()

	if state != StateFitted && state != StatePersisted {
		return nil, ErrNotFitted
	}
	return m.model.PredictTopK(ctx, test, k)
}

// Persist saves the fitted parameters as the next checkpoint version.
func (m *ModelManager) Persist(ctx context.Context, store CheckpointStore, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateFitted {
		return ErrNotFitted
	}

	next := m.version + 1
	meta := CheckpointMeta{
		Name:         name,
		Version:      next,
		TrainedAt:    m.trainedAt,
		UserCount:    m.users,
		ItemCount:    m.items,
		RatingCount:  m.ratings,
		Epochs:       m.stats.Epochs,
		TrainingMS:   m.stats.Duration.Milliseconds(),
		RatingValues: m.values,
	}
	err := store.Save(ctx, name, next, m.model.State(), meta)
	metrics.RecordCheckpoint("save", err)
	if err != nil {
		return fmt.Errorf("save checkpoint %s v%d: %w", name, next, err)
	}

	m.version = next
	m.state = StatePersisted
	m.logger.Info().Int("version", next).Msg("checkpoint persisted")
	return nil
}
