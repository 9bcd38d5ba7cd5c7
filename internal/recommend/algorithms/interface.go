// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

// Package algorithms implements the models behind the recommendation engine.
//
//   - RBM: a multinomial restricted Boltzmann machine for collaborative
//     filtering on the user-item affinity matrix.
//   - ContentSimilarity: bag-of-words cosine similarity over item text.
//   - Popularity: the strong-rating count baseline used as a fallback.
//
// # Thread Safety
//
// All algorithms are safe for concurrent use. Training acquires an
// exclusive lock while prediction uses a shared lock. ContentSimilarity
// serves reads from an immutable snapshot without locking.
package algorithms

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/blogrec/internal/recommend"
)

// BaseAlgorithm provides common functionality for all algorithms.
type BaseAlgorithm struct {
	name          string
	trained       bool
	version       int
	lastTrainedAt time.Time
	mu            sync.RWMutex
}

// NewBaseAlgorithm creates a new base algorithm with the given name.
func NewBaseAlgorithm(name string) BaseAlgorithm {
	return BaseAlgorithm{name: name}
}

// Name returns the algorithm identifier.
func (b *BaseAlgorithm) Name() string {
	return b.name
}

// IsTrained returns whether the model has been trained.
func (b *BaseAlgorithm) IsTrained() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.trained
}

// Version counts completed trainings.
func (b *BaseAlgorithm) Version() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}

// LastTrainedAt returns when the model was last trained.
func (b *BaseAlgorithm) LastTrainedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastTrainedAt
}

// markTrained must be called while holding the training lock.
func (b *BaseAlgorithm) markTrained() {
	b.trained = true
	b.version++
	b.lastTrainedAt = time.Now()
}

func (b *BaseAlgorithm) acquireTrainLock()   { b.mu.Lock() }
func (b *BaseAlgorithm) releaseTrainLock()   { b.mu.Unlock() }
func (b *BaseAlgorithm) acquirePredictLock() { b.mu.RLock() }
func (b *BaseAlgorithm) releasePredictLock() { b.mu.RUnlock() }

// ContextCancelled reports whether ctx is done without blocking.
func ContextCancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// rankScores sorts by score descending then item id ascending, keeps at
// most k entries and assigns ranks from 1.
func rankScores(items []recommend.ScoredItem, k int) []recommend.ScoredItem {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].ItemID < items[j].ItemID
	})
	if k > 0 && len(items) > k {
		items = items[:k]
	}
	for i := range items {
		items[i].Rank = i + 1
	}
	return items
}
