// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package api

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/blogrec/internal/recommend"
)

type mockService struct {
	mu sync.Mutex

	applied    []recommend.ActionEvent
	outcome    recommend.Outcome
	applyErr   error
	recs       []recommend.ScoredItem
	source     string
	recErr     error
	similar    []int
	similarErr error
	popular    []recommend.ScoredItem
	popularFor int
	likes      int
	likesErr   error
	imported   []recommend.Item
	refreshed  bool
	refreshErr error
	status     recommend.RefreshStatus
}

func (m *mockService) Apply(_ context.Context, ev recommend.ActionEvent) (recommend.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applied = append(m.applied, ev)
	return m.outcome, m.applyErr
}

func (m *mockService) Recommend(_ context.Context, _ int) ([]recommend.ScoredItem, string, error) {
	return m.recs, m.source, m.recErr
}

func (m *mockService) SimilarForUser(_ context.Context, _ int) ([]int, error) {
	return m.similar, m.similarErr
}

func (m *mockService) Popular(_ context.Context, userID int) ([]recommend.ScoredItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.popularFor = userID
	return m.popular, nil
}

func (m *mockService) LikeCount(_ context.Context, _ int) (int, error) {
	return m.likes, m.likesErr
}

func (m *mockService) RefreshIfNeeded(_ context.Context, _ time.Time) (bool, error) {
	return m.refreshed, m.refreshErr
}

func (m *mockService) ImportItems(_ context.Context, items []recommend.Item) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imported = append(m.imported, items...)
	return len(items), nil
}

func (m *mockService) Status() recommend.RefreshStatus {
	return m.status
}

type mockPublisher struct {
	mu        sync.Mutex
	published []recommend.ActionEvent
	err       error
}

func (m *mockPublisher) PublishAction(_ context.Context, ev recommend.ActionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if err := recommend.ValidateAction(ev); err != nil {
		return err
	}
	m.published = append(m.published, ev)
	return nil
}

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(context.Context) error {
	return m.err
}
