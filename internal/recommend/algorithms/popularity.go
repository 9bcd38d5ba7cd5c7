// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package algorithms

import (
	"sort"

	"github.com/tomtom215/blogrec/internal/recommend"
)

// Popularity ranks items by how many readers rated them above a strength
// threshold. It backs the popular fallback for users without cached
// recommendations.
//
//	score(item) = |{ratings of item with strength > threshold}|
//
// Ties are broken by ascending item id so the ranking is deterministic.
type Popularity struct {
	BaseAlgorithm

	threshold float64
	maxItems  int

	counts    map[int]int
	sortedIDs []int
}

// PopularityConfig contains configuration for the popularity ranker.
type PopularityConfig struct {
	// Threshold is the exclusive strength cutoff. Default 3.5, which keeps
	// only liked+favorited ratings.
	Threshold float64

	// MaxItems limits the number of ranked items kept.
	MaxItems int
}

// NewPopularity creates a new popularity ranker.
func NewPopularity(cfg PopularityConfig) *Popularity {
	if cfg.Threshold <= 0 {
		cfg.Threshold = recommend.StrengthFavorited
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 10000
	}
	return &Popularity{
		BaseAlgorithm: NewBaseAlgorithm("popularity"),
		threshold:     cfg.Threshold,
		maxItems:      cfg.MaxItems,
		counts:        make(map[int]int),
	}
}

var _ recommend.PopularityRanker = (*Popularity)(nil)

// Train recounts strong ratings.
//
//nolint:gocritic // rangeValCopy: RatingEvent passed by value in range, acceptable for clarity
func (p *Popularity) Train(ratings []recommend.RatingEvent) {
	p.acquireTrainLock()
	defer p.releaseTrainLock()

	p.counts = make(map[int]int)
	for _, r := range ratings {
		if r.Strength > p.threshold {
			p.counts[r.ItemID]++
		}
	}

	ids := make([]int, 0, len(p.counts))
	for id := range p.counts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ci, cj := p.counts[ids[i]], p.counts[ids[j]]
		if ci != cj {
			return ci > cj
		}
		return ids[i] < ids[j]
	})
	if len(ids) > p.maxItems {
		ids = ids[:p.maxItems]
	}
	p.sortedIDs = ids

	p.markTrained()
}

// Top returns at most limit items in popularity order, skipping exclude.
// The score is the strong-rating count.
func (p *Popularity) Top(limit int, exclude map[int]struct{}) []recommend.ScoredItem {
	p.acquirePredictLock()
	defer p.releasePredictLock()

	out := make([]recommend.ScoredItem, 0, min(max(limit, 0), len(p.sortedIDs)))
	for _, id := range p.sortedIDs {
		if len(out) >= limit {
			break
		}
		if _, skip := exclude[id]; skip {
			continue
		}
		out = append(out, recommend.ScoredItem{
			ItemID: id,
			Score:  float64(p.counts[id]),
			Rank:   len(out) + 1,
		})
	}
	return out
}

// GetTopK returns the top K item IDs without exclusions.
func (p *Popularity) GetTopK(k int) []int {
	p.acquirePredictLock()
	defer p.releasePredictLock()

	if k <= 0 || len(p.sortedIDs) == 0 {
		return nil
	}
	k = min(k, len(p.sortedIDs))
	result := make([]int, k)
	copy(result, p.sortedIDs[:k])
	return result
}
