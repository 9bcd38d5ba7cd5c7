// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/blogrec/internal/recommend"
)

// mockRefresher returns the queued errors in order, then nil.
type mockRefresher struct {
	mu    sync.Mutex
	calls int
	errs  []error
}

func (m *mockRefresher) RefreshIfNeeded(_ context.Context, _ time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if len(m.errs) == 0 {
		return true, nil
	}
	err := m.errs[0]
	m.errs = m.errs[1:]
	return false, err
}

func (m *mockRefresher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestRefreshService(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		errs      []error
		startup   bool
		wantErr   error
		wantCalls int
	}{
		{"startup refresh then waits", nil, true, context.DeadlineExceeded, 1},
		{"no startup refresh", nil, false, context.DeadlineExceeded, 0},
		{"data unavailable is retried later", []error{fmt.Errorf("load: %w", recommend.ErrDataUnavailable)}, true, context.DeadlineExceeded, 1},
		{"overlapping refresh is skipped", []error{recommend.ErrRefreshInProgress}, true, context.DeadlineExceeded, 1},
		{"corruption stops the service", []error{fmt.Errorf("restore: %w", recommend.ErrCheckpointCorruption)}, true, suture.ErrDoNotRestart, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := &mockRefresher{errs: tt.errs}
			svc := NewRefreshService(r, RefreshServiceConfig{
				RunOnStartup: tt.startup,
				Interval:     time.Hour,
			}, zerolog.Nop())

			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			err := svc.Serve(ctx)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Serve() = %v, want %v", err, tt.wantErr)
			}
			if got := r.callCount(); got != tt.wantCalls {
				t.Errorf("RefreshIfNeeded called %d times, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestRefreshServiceTicks(t *testing.T) {
	t.Parallel()

	r := &mockRefresher{errs: []error{fmt.Errorf("bad row: %w", recommend.ErrValidation)}}
	svc := NewRefreshService(r, RefreshServiceConfig{Interval: 20 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_ = svc.Serve(ctx)

	if got := r.callCount(); got < 2 {
		t.Errorf("RefreshIfNeeded called %d times, want ticks after a failure", got)
	}
	if svc.String() != "recommend-refresh" {
		t.Errorf("String() = %q", svc.String())
	}
}

func TestRefreshServiceRetriesWithBackoff(t *testing.T) {
	t.Parallel()

	unavailable := fmt.Errorf("ping: %w", recommend.ErrDataUnavailable)
	tests := []struct {
		name      string
		errs      []error
		retryMax  int
		wantCalls int
	}{
		{"recovers on second retry", []error{unavailable, unavailable}, 3, 3},
		{"gives up after retry max", []error{unavailable, unavailable, unavailable, unavailable, unavailable}, 2, 3},
		{"validation is not retried", []error{fmt.Errorf("row: %w", recommend.ErrValidation)}, 3, 1},
		{"zero retry max disables retries", []error{unavailable}, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := &mockRefresher{errs: tt.errs}
			svc := NewRefreshService(r, RefreshServiceConfig{
				RunOnStartup:    true,
				Interval:        time.Hour,
				RetryMax:        tt.retryMax,
				RetryBackoff:    5 * time.Millisecond,
				RetryMaxBackoff: 20 * time.Millisecond,
			}, zerolog.Nop())

			ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
			defer cancel()
			if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("Serve() = %v, want deadline exceeded", err)
			}
			if got := r.callCount(); got != tt.wantCalls {
				t.Errorf("RefreshIfNeeded called %d times, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestRefreshServiceConfigBackoff(t *testing.T) {
	t.Parallel()

	cfg := RefreshServiceConfig{RetryBackoff: time.Second, RetryMaxBackoff: 10 * time.Second}
	cfg.applyDefaults()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second},
		{100, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := cfg.backoff(tt.attempt); got != tt.want {
			t.Errorf("backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}

	var defaults RefreshServiceConfig
	defaults.applyDefaults()
	if defaults.RetryMax != 0 || defaults.RetryBackoff != 5*time.Second || defaults.RetryMaxBackoff != 5*time.Minute {
		t.Errorf("defaults = %+v, want no retries, 5s backoff capped at 5m", defaults)
	}
}

type mockSyncer struct {
	calls atomic.Int32
	err   error
}

func (m *mockSyncer) SyncCorpus(context.Context) (int, error) {
	m.calls.Add(1)
	return 2, m.err
}

func TestCorpusSyncService(t *testing.T) {
	t.Parallel()

	for _, syncErr := range []error{nil, errors.New("db closed")} {
		s := &mockSyncer{err: syncErr}
		svc := NewCorpusSyncService(s, 20*time.Millisecond, zerolog.Nop())

		ctx, cancel := context.WithTimeout(context.Background(), 110*time.Millisecond)
		err := svc.Serve(ctx)
		cancel()

		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Serve() = %v, want deadline exceeded", err)
		}
		if s.calls.Load() < 2 {
			t.Errorf("SyncCorpus called %d times, want startup sync plus ticks", s.calls.Load())
		}
	}
}

type mockGC struct {
	calls atomic.Int32
	ratio atomic.Value
}

func (m *mockGC) RunGC(_ context.Context, ratio float64) error {
	m.calls.Add(1)
	m.ratio.Store(ratio)
	return nil
}

func TestCheckpointGCService(t *testing.T) {
	t.Parallel()

	gc := &mockGC{}
	svc := NewCheckpointGCService(gc, 20*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 110*time.Millisecond)
	defer cancel()
	_ = svc.Serve(ctx)

	if gc.calls.Load() < 1 {
		t.Fatal("RunGC was never called")
	}
	if r, _ := gc.ratio.Load().(float64); r != DefaultGCDiscardRatio {
		t.Errorf("discard ratio = %v, want %v", r, DefaultGCDiscardRatio)
	}
}

type mockRouter struct {
	runs atomic.Int32
	err  error
}

func (m *mockRouter) Run(ctx context.Context) error {
	m.runs.Add(1)
	if m.err != nil {
		return m.err
	}
	<-ctx.Done()
	return nil
}

func (m *mockRouter) String() string { return "events-gochannel" }

func TestEventsService(t *testing.T) {
	t.Parallel()

	t.Run("stops with context", func(t *testing.T) {
		t.Parallel()
		r := &mockRouter{}
		svc := NewEventsService(r, zerolog.Nop())
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		if err := svc.Serve(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Serve() = %v, want deadline exceeded", err)
		}
		if svc.String() != "events-gochannel" {
			t.Errorf("String() = %q", svc.String())
		}
	})

	t.Run("router failure is not restarted", func(t *testing.T) {
		t.Parallel()
		r := &mockRouter{err: errors.New("subscribe failed")}
		svc := NewEventsService(r, zerolog.Nop())

		if err := svc.Serve(context.Background()); err == nil || errors.Is(err, suture.ErrDoNotRestart) {
			t.Fatalf("first Serve() = %v, want router error", err)
		}
		if err := svc.Serve(context.Background()); !errors.Is(err, suture.ErrDoNotRestart) {
			t.Errorf("second Serve() = %v, want ErrDoNotRestart", err)
		}
		if r.runs.Load() != 1 {
			t.Errorf("router run %d times, want 1", r.runs.Load())
		}
	})
}

type mockHTTPServer struct {
	listenErr error
	stopCh    chan struct{}
	shutdowns atomic.Int32
}

func newMockHTTPServer() *mockHTTPServer {
	return &mockHTTPServer{stopCh: make(chan struct{})}
}

func (m *mockHTTPServer) ListenAndServe() error {
	if m.listenErr != nil {
		return m.listenErr
	}
	<-m.stopCh
	return http.ErrServerClosed
}

func (m *mockHTTPServer) Shutdown(context.Context) error {
	m.shutdowns.Add(1)
	close(m.stopCh)
	return nil
}

func TestHTTPServerService(t *testing.T) {
	t.Parallel()

	t.Run("graceful shutdown", func(t *testing.T) {
		t.Parallel()
		srv := newMockHTTPServer()
		svc := NewHTTPServerService(srv, time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- svc.Serve(ctx) }()
		cancel()

		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Serve() = %v, want context.Canceled", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not return")
		}
		if srv.shutdowns.Load() != 1 {
			t.Errorf("Shutdown called %d times, want 1", srv.shutdowns.Load())
		}
	})

	t.Run("listen failure", func(t *testing.T) {
		t.Parallel()
		srv := newMockHTTPServer()
		srv.listenErr = errors.New("address in use")
		svc := NewHTTPServerService(srv, 0)

		err := svc.Serve(context.Background())
		if err == nil || !errors.Is(err, srv.listenErr) {
			t.Errorf("Serve() = %v, want wrapped listen error", err)
		}
		if svc.shutdownTimeout != 10*time.Second {
			t.Errorf("shutdownTimeout = %v, want default 10s", svc.shutdownTimeout)
		}
	})
}
