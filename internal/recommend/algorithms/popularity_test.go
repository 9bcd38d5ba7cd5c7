// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package algorithms

import (
	"reflect"
	"testing"

	"github.com/tomtom215/blogrec/internal/recommend"
)

func popularityRatings() []recommend.RatingEvent {
	return []recommend.RatingEvent{
		{UserID: 1, ItemID: 10, Strength: 5},
		{UserID: 2, ItemID: 10, Strength: 5},
		{UserID: 1, ItemID: 20, Strength: 5},
		{UserID: 3, ItemID: 30, Strength: 5},
		{UserID: 3, ItemID: 40, Strength: 3.5},
		{UserID: 4, ItemID: 40, Strength: 2},
	}
}

func TestPopularity_Top(t *testing.T) {
	t.Parallel()

	p := NewPopularity(PopularityConfig{})
	if p.IsTrained() {
		t.Error("IsTrained() = true before Train")
	}
	p.Train(popularityRatings())

	tests := []struct {
		name    string
		limit   int
		exclude map[int]struct{}
		want    []int
	}{
		{"all", 10, nil, []int{10, 20, 30}},
		{"limited", 2, nil, []int{10, 20}},
		{"excluded", 10, map[int]struct{}{10: {}}, []int{20, 30}},
		{"zero limit", 0, nil, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := p.Top(tt.limit, tt.exclude)
			ids := make([]int, len(got))
			for i, s := range got {
				ids[i] = s.ItemID
				if s.Rank != i+1 {
					t.Errorf("rank of %d = %d, want %d", s.ItemID, s.Rank, i+1)
				}
			}
			if !reflect.DeepEqual(ids, tt.want) {
				t.Errorf("Top() = %v, want %v", ids, tt.want)
			}
		})
	}
}

func TestPopularity_ThresholdIsExclusive(t *testing.T) {
	t.Parallel()

	p := NewPopularity(PopularityConfig{Threshold: 3.5})
	p.Train(popularityRatings())
	for _, s := range p.Top(10, nil) {
		if s.ItemID == 40 {
			t.Error("item rated exactly at the threshold was ranked")
		}
	}
	if got := p.GetTopK(1); !reflect.DeepEqual(got, []int{10}) {
		t.Errorf("GetTopK(1) = %v, want [10]", got)
	}
	if p.Version() != 1 {
		t.Errorf("Version() = %d, want 1", p.Version())
	}
}
