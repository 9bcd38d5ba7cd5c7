// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package recommend

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func affinityEvents() []RatingEvent {
	var events []RatingEvent
	for u := 1; u <= 6; u++ {
		for i := 1; i <= u+1; i++ {
			events = append(events, RatingEvent{UserID: u * 10, ItemID: i * 100, Strength: float64(1 + (u+i)%4)})
		}
	}
	return events
}

func TestBuildAffinity(t *testing.T) {
	t.Parallel()

	m, err := BuildAffinity([]RatingEvent{
		{UserID: 30, ItemID: 7, Strength: 2},
		{UserID: 10, ItemID: 9, Strength: 0.5},
		{UserID: 10, ItemID: 7, Strength: 5},
	})
	if err != nil {
		t.Fatalf("BuildAffinity() error = %v", err)
	}
	if !reflect.DeepEqual(m.UserIDs, []int{10, 30}) || !reflect.DeepEqual(m.ItemIDs, []int{7, 9}) {
		t.Errorf("ids = %v/%v, want sorted users and items", m.UserIDs, m.ItemIDs)
	}
	if m.Nonzero() != 3 {
		t.Errorf("Nonzero() = %d, want 3", m.Nonzero())
	}
	r, _ := m.UserRow(10)
	c, _ := m.ItemCol(9)
	if got := m.Value(r, c); got != 0.5 {
		t.Errorf("Value(user 10, item 9) = %v, want 0.5", got)
	}
	if u, i := m.MapBack(r, c); u != 10 || i != 9 {
		t.Errorf("MapBack() = %d, %d, want 10, 9", u, i)
	}
	r30, _ := m.UserRow(30)
	if got := m.Value(r30, c); got != 0 {
		t.Errorf("Value(user 30, item 9) = %v, want 0", got)
	}
	if got := m.RatingValues(); !reflect.DeepEqual(got, []float64{0.5, 2, 5}) {
		t.Errorf("RatingValues() = %v, want [0.5 2 5]", got)
	}
}

func TestBuildAffinity_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		events []RatingEvent
	}{
		{"zero strength", []RatingEvent{{UserID: 1, ItemID: 1, Strength: 0}}},
		{"negative strength", []RatingEvent{{UserID: 1, ItemID: 1, Strength: -1}}},
		{"nan strength", []RatingEvent{{UserID: 1, ItemID: 1, Strength: math.NaN()}}},
		{"duplicate pair", []RatingEvent{{UserID: 1, ItemID: 1, Strength: 1}, {UserID: 1, ItemID: 1, Strength: 2}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := BuildAffinity(tt.events); !errors.Is(err, ErrValidation) {
				t.Errorf("BuildAffinity() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestStratifiedSplit_Properties(t *testing.T) {
	t.Parallel()

	events := append(affinityEvents(), RatingEvent{UserID: 99, ItemID: 100, Strength: 2})
	m, err := BuildAffinity(events)
	if err != nil {
		t.Fatalf("BuildAffinity() error = %v", err)
	}
	train, test := StratifiedSplit(m, 0.75, 42)

	if train.Nonzero()+test.Nonzero() != m.Nonzero() {
		t.Errorf("split lost ratings: %d + %d != %d", train.Nonzero(), test.Nonzero(), m.Nonzero())
	}
	if !reflect.DeepEqual(train.ItemIDs, m.ItemIDs) || !reflect.DeepEqual(test.UserIDs, m.UserIDs) {
		t.Error("split matrices must share the full id index")
	}

	for r := range m.Rows {
		n := len(m.Rows[r])
		tr, te := len(train.Rows[r]), len(test.Rows[r])
		if n == 1 {
			if tr != 1 || te != 0 {
				t.Errorf("user %d with one rating split %d/%d, want 1/0", m.UserIDs[r], tr, te)
			}
			continue
		}
		if tr == 0 || te == 0 {
			t.Errorf("user %d split %d/%d, want both sides non-empty", m.UserIDs[r], tr, te)
		}
		for _, cell := range train.Rows[r] {
			if test.Value(r, cell.Col) != 0 {
				t.Errorf("user %d item col %d in both splits", m.UserIDs[r], cell.Col)
			}
		}
	}
}

func TestStratifiedSplit_Deterministic(t *testing.T) {
	t.Parallel()

	m, err := BuildAffinity(affinityEvents())
	if err != nil {
		t.Fatalf("BuildAffinity() error = %v", err)
	}
	a, _ := StratifiedSplit(m, 0.75, 7)
	b, _ := StratifiedSplit(m, 0.75, 7)
	if !reflect.DeepEqual(a.Rows, b.Rows) {
		t.Error("same seed produced different splits")
	}
}
