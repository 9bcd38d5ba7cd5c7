// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package recommend

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// mockLedger implements LedgerSource and Snapshot in memory.
type mockLedger struct {
	mu       sync.Mutex
	rows     map[[2]int]RatingEvent
	snapshot []RatingEvent

	getErr  error
	putErr  error
	putHook func()
}

func newMockLedger() *mockLedger {
	return &mockLedger{rows: make(map[[2]int]RatingEvent)}
}

func (m *mockLedger) RatingsBetween(_ context.Context, from, to time.Time) ([]RatingEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []RatingEvent
	for _, r := range m.rows {
		if !r.Timestamp.Before(from) && !r.Timestamp.After(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockLedger) CountRatingsAfter(_ context.Context, after time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rows {
		if r.Timestamp.After(after) {
			n++
		}
	}
	return n, nil
}

func (m *mockLedger) GetRating(_ context.Context, userID, itemID int) (RatingEvent, bool, error) {
	if m.getErr != nil {
		return RatingEvent{}, false, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[[2]int{userID, itemID}]
	return r, ok, nil
}

func (m *mockLedger) PutRating(_ context.Context, ev RatingEvent) error {
	if m.putErr != nil {
		return m.putErr
	}
	if m.putHook != nil {
		m.putHook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[[2]int{ev.UserID, ev.ItemID}] = ev
	return nil
}

func (m *mockLedger) RatingsForUser(_ context.Context, userID int) ([]RatingEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []RatingEvent
	for _, r := range m.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ItemID < out[j].ItemID })
	return out, nil
}

func (m *mockLedger) LoadSnapshot(_ context.Context) ([]RatingEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RatingEvent(nil), m.snapshot...), nil
}

func (m *mockLedger) SaveSnapshot(_ context.Context, events []RatingEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = append([]RatingEvent(nil), events...)
	return nil
}

func (m *mockLedger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// mockItems implements ItemStore.
type mockItems struct {
	mu         sync.Mutex
	items      []Item
	savedCalls int
}

func (m *mockItems) MaxItemID(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	maxID := 0
	for _, it := range m.items {
		maxID = max(maxID, it.ID)
	}
	return maxID, nil
}

func (m *mockItems) ItemsAfter(_ context.Context, afterID int) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Item
	for _, it := range m.items {
		if it.ID > afterID {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *mockItems) SaveNormalized(_ context.Context, items []Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.savedCalls++
	for _, upd := range items {
		for i := range m.items {
			if m.items[i].ID == upd.ID {
				m.items[i].NormalizedContent = upd.NormalizedContent
			}
		}
	}
	return nil
}

func (m *mockItems) UpsertItems(_ context.Context, items []Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, upd := range items {
		upd.NormalizedContent = ""
		replaced := false
		for i := range m.items {
			if m.items[i].ID == upd.ID {
				m.items[i] = upd
				replaced = true
			}
		}
		if !replaced {
			m.items = append(m.items, upd)
		}
	}
	return nil
}

func (m *mockItems) AllItems(context.Context) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Item(nil), m.items...), nil
}

// mockCheckpoints implements CheckpointStore and CheckpointPruner.
type mockCheckpoints struct {
	mu       sync.Mutex
	versions map[string]map[int]mockState
	pruned   int
}

func newMockCheckpoints() *mockCheckpoints {
	return &mockCheckpoints{versions: make(map[string]map[int]mockState)}
}

func (m *mockCheckpoints) Save(_ context.Context, name string, version int, data any, _ CheckpointMeta) error {
	st, ok := data.(*mockState)
	if !ok {
		return fmt.Errorf("unexpected state %T", data)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.versions[name] == nil {
		m.versions[name] = make(map[int]mockState)
	}
	m.versions[name][version] = *st
	return nil
}

func (m *mockCheckpoints) Load(_ context.Context, name string, version int, target any) (CheckpointMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vs := m.versions[name]
	if version == 0 {
		for v := range vs {
			version = max(version, v)
		}
	}
	st, ok := vs[version]
	if !ok {
		return CheckpointMeta{}, fmt.Errorf("%s: %w", name, ErrCheckpointMissing)
	}
	*(target.(*mockState)) = st
	return CheckpointMeta{Name: name, Version: version}, nil
}

func (m *mockCheckpoints) Prune(_ context.Context, name string, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var vs []int
	for v := range m.versions[name] {
		vs = append(vs, v)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(vs)))
	for i, v := range vs {
		if i >= keep {
			delete(m.versions[name], v)
			m.pruned++
		}
	}
	return nil
}

func (m *mockCheckpoints) latest(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest := 0
	for v := range m.versions[name] {
		latest = max(latest, v)
	}
	return latest
}

// mockCache implements CacheStore.
type mockCache struct {
	mu        sync.Mutex
	recs      map[int][]ScoredItem
	refreshed time.Time
	has       bool
	replaced  int
}

func (m *mockCache) LastRefresh(context.Context) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refreshed, m.has, nil
}

func (m *mockCache) ReplaceAll(_ context.Context, recs map[int][]ScoredItem, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = recs
	m.refreshed = at
	m.has = true
	m.replaced++
	return nil
}

func (m *mockCache) ForUser(_ context.Context, userID int) ([]ScoredItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recs[userID], nil
}

// mockSimilarity implements SimilarityIndex by returning every item the
// user rated above zero plus the fixed extra list.
type mockSimilarity struct {
	mu       sync.Mutex
	items    []Item
	rebuilds int
	extra    []int
}

func (m *mockSimilarity) ItemCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *mockSimilarity) Rebuild(items []Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = items
	m.rebuilds++
}

func (m *mockSimilarity) SimilarItemsForUser(ratings []UserRating) []int {
	out := []int{}
	for _, r := range ratings {
		out = append(out, r.ItemID)
	}
	return append(out, m.extra...)
}

// mockPopularity implements PopularityRanker.
type mockPopularity struct {
	mu     sync.Mutex
	trains int
	ranked []int
}

func (m *mockPopularity) Train(ratings []RatingEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trains++
	seen := make(map[int]struct{})
	m.ranked = m.ranked[:0]
	for _, r := range ratings {
		if _, ok := seen[r.ItemID]; ok {
			continue
		}
		seen[r.ItemID] = struct{}{}
		m.ranked = append(m.ranked, r.ItemID)
	}
	sort.Ints(m.ranked)
}

func (m *mockPopularity) Top(limit int, exclude map[int]struct{}) []ScoredItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []ScoredItem{}
	for _, id := range m.ranked {
		if _, skip := exclude[id]; skip {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, ScoredItem{ItemID: id, Rank: len(out) + 1})
	}
	return out
}

type mockState struct {
	Fits int
}

// mockModel ranks every item absent from the test row by ascending id.
type mockModel struct {
	state   mockState
	fitErr  error
	fitHook func()
	items   []int
}

func (m *mockModel) Name() string { return "mock" }

func (m *mockModel) Fit(_ context.Context, train *AffinityMatrix) (FitStats, error) {
	if m.fitHook != nil {
		m.fitHook()
	}
	if m.fitErr != nil {
		return FitStats{}, m.fitErr
	}
	resumed := m.state.Fits > 0
	m.state.Fits++
	m.items = train.ItemIDs
	return FitStats{Epochs: 1, Resumed: resumed}, nil
}

func (m *mockModel) PredictTopK(_ context.Context, test *AffinityMatrix, k int) (map[int][]ScoredItem, error) {
	out := make(map[int][]ScoredItem)
	for r, row := range test.Rows {
		if len(row) == 0 {
			continue
		}
		var list []ScoredItem
		for c, itemID := range test.ItemIDs {
			if test.Value(r, c) != 0 || len(list) == k {
				continue
			}
			list = append(list, ScoredItem{ItemID: itemID, Score: 1, Rank: len(list) + 1})
		}
		out[test.UserIDs[r]] = list
	}
	return out, nil
}

func (m *mockModel) NewState() any { return &mockState{} }

func (m *mockModel) Restore(state any) error {
	st, ok := state.(*mockState)
	if !ok {
		return fmt.Errorf("%w: state %T", ErrCheckpointCorruption, state)
	}
	m.state = *st
	return nil
}

func (m *mockModel) State() any { return &m.state }
