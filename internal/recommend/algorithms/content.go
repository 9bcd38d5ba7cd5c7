// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package algorithms

import (
	"math"
	"strings"
	"sync/atomic"

	"github.com/tomtom215/blogrec/internal/recommend"
)

// ContentSimilarity recommends posts whose normalized text resembles the
// posts a reader rated. Item vectors are raw token counts over the corpus
// vocabulary, compared with cosine similarity:
//
//	sim(a, b) = (a · b) / (|a| |b|)
//
// The dense similarity matrix is rebuilt whenever the corpus changes and
// published as an immutable snapshot, so queries never block on a rebuild.
type ContentSimilarity struct {
	BaseAlgorithm

	positiveThreshold   float64
	similarityThreshold float64

	snap atomic.Pointer[similaritySnapshot]
}

// similaritySnapshot is never mutated after it is published.
type similaritySnapshot struct {
	itemIDs []int
	index   map[int]int
	sim     []float64 // row-major n*n
}

func (s *similaritySnapshot) at(i, j int) float64 {
	return s.sim[i*len(s.itemIDs)+j]
}

// ContentSimilarityConfig contains configuration for content similarity.
// Zero values select the defaults: seen strength and a 0.5 cutoff.
type ContentSimilarityConfig struct {
	// PositiveThreshold is the minimum strength for a rating to act as a seed.
	PositiveThreshold float64

	// SimilarityThreshold is the exclusive cosine cutoff.
	SimilarityThreshold float64
}

// NewContentSimilarity creates an empty similarity index.
func NewContentSimilarity(cfg ContentSimilarityConfig) *ContentSimilarity {
	if cfg.PositiveThreshold <= 0 {
		cfg.PositiveThreshold = recommend.StrengthSeen
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = 0.5
	}
	c := &ContentSimilarity{
		BaseAlgorithm:       NewBaseAlgorithm("content"),
		positiveThreshold:   cfg.PositiveThreshold,
		similarityThreshold: cfg.SimilarityThreshold,
	}
	c.snap.Store(&similaritySnapshot{index: map[int]int{}})
	return c
}

var _ recommend.SimilarityIndex = (*ContentSimilarity)(nil)

// ItemCount returns the number of items in the current snapshot.
func (c *ContentSimilarity) ItemCount() int {
	return len(c.snap.Load().itemIDs)
}

// Rebuild computes the similarity matrix for items, in the given order, and
// publishes it. Items repeating an earlier id are ignored.
//
//nolint:gocritic // rangeValCopy: Item passed by value in range, acceptable for clarity
func (c *ContentSimilarity) Rebuild(items []recommend.Item) {
	c.acquireTrainLock()
	defer c.releaseTrainLock()

	next := &similaritySnapshot{index: make(map[int]int, len(items))}
	vocab := make(map[string]int)
	var vectors []map[int]float64

	for _, item := range items {
		if _, dup := next.index[item.ID]; dup {
			continue
		}
		next.index[item.ID] = len(next.itemIDs)
		next.itemIDs = append(next.itemIDs, item.ID)

		vec := make(map[int]float64)
		for _, tok := range strings.Fields(item.NormalizedContent) {
			id, ok := vocab[tok]
			if !ok {
				id = len(vocab)
				vocab[tok] = id
			}
			vec[id]++
		}
		vectors = append(vectors, vec)
	}

	n := len(next.itemIDs)
	norms := make([]float64, n)
	for i, vec := range vectors {
		var sum float64
		for _, v := range vec {
			sum += v * v
		}
		norms[i] = math.Sqrt(sum)
	}

	next.sim = make([]float64, n*n)
	for i := 0; i < n; i++ {
		next.sim[i*n+i] = 1
		for j := i + 1; j < n; j++ {
			s := cosine(vectors[i], vectors[j], norms[i], norms[j])
			next.sim[i*n+j] = s
			next.sim[j*n+i] = s
		}
	}

	c.snap.Store(next)
	c.markTrained()
}

func cosine(a, b map[int]float64, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for k, v := range a {
		dot += v * b[k]
	}
	s := dot / (na * nb)
	return min(max(s, 0), 1)
}

// Similarity returns the cosine similarity of two items, and false when
// either is not in the snapshot.
func (c *ContentSimilarity) Similarity(a, b int) (float64, bool) {
	s := c.snap.Load()
	i, ok := s.index[a]
	if !ok {
		return 0, false
	}
	j, ok := s.index[b]
	if !ok {
		return 0, false
	}
	return s.at(i, j), true
}

// SimilarItemsForUser returns, in first-seen order, every item more similar
// than the threshold to any seed rating. Seeds are processed in input order
// and include the seed items themselves. Unknown items are skipped.
func (c *ContentSimilarity) SimilarItemsForUser(ratings []recommend.UserRating) []int {
	s := c.snap.Load()
	out := []int{}
	seen := make(map[int]struct{})

	for _, r := range ratings {
		if r.Strength < c.positiveThreshold {
			continue
		}
		i, ok := s.index[r.ItemID]
		if !ok {
			continue
		}
		for j, id := range s.itemIDs {
			if s.at(i, j) <= c.similarityThreshold {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
