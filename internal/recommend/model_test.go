// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package recommend

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func smallMatrix(t *testing.T) *AffinityMatrix {
	t.Helper()
	m, err := BuildAffinity([]RatingEvent{
		{UserID: 1, ItemID: 1, Strength: 2},
		{UserID: 1, ItemID: 2, Strength: 0.5},
		{UserID: 2, ItemID: 2, Strength: 5},
	})
	if err != nil {
		t.Fatalf("BuildAffinity() error = %v", err)
	}
	return m
}

func TestModelManager_Lifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newMockCheckpoints()
	m := smallMatrix(t)

	mm := NewModelManager(&mockModel{}, zerolog.Nop())
	if mm.State() != StateUninitialized {
		t.Fatalf("initial state = %s", mm.State())
	}

	if err := mm.Load(ctx, store, "rbm"); !errors.Is(err, ErrCheckpointMissing) || !errors.Is(err, ErrColdStart) {
		t.Fatalf("Load() on empty store error = %v, want ErrCheckpointMissing", err)
	}
	if mm.State() != StateUninitialized {
		t.Errorf("state after missing load = %s, want uninitialized", mm.State())
	}

	if _, err := mm.PredictTopK(ctx, m, 3); !errors.Is(err, ErrNotFitted) {
		t.Errorf("PredictTopK() before fit error = %v, want ErrNotFitted", err)
	}
	if err := mm.Persist(ctx, store, "rbm"); !errors.Is(err, ErrNotFitted) {
		t.Errorf("Persist() before fit error = %v, want ErrNotFitted", err)
	}

	if err := mm.Fit(ctx, m); err != nil {
		t.Fatalf("Fit() error = %v", err)
	}
	if mm.State() != StateFitted {
		t.Errorf("state after fit = %s, want fitted", mm.State())
	}
	if err := mm.Fit(ctx, m); err == nil {
		t.Error("second Fit() should fail")
	}
	if err := mm.Persist(ctx, store, "rbm"); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if mm.State() != StatePersisted || mm.Version() != 1 {
		t.Errorf("after persist: state %s version %d, want persisted 1", mm.State(), mm.Version())
	}
	if _, err := mm.PredictTopK(ctx, m, 3); err != nil {
		t.Errorf("PredictTopK() after persist error = %v", err)
	}

	resumed := NewModelManager(&mockModel{}, zerolog.Nop())
	if err := resumed.Load(ctx, store, "rbm"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if resumed.State() != StateLoaded || resumed.Version() != 1 {
		t.Errorf("after load: state %s version %d, want loaded 1", resumed.State(), resumed.Version())
	}
	if err := resumed.Fit(ctx, m); err != nil {
		t.Fatalf("resumed Fit() error = %v", err)
	}
	if !resumed.Stats().Resumed {
		t.Error("Stats().Resumed = false after loading a checkpoint")
	}
}

func TestModelManager_FitErrorRestoresState(t *testing.T) {
	t.Parallel()
	boom := errors.New("diverged")

	mm := NewModelManager(&mockModel{fitErr: boom}, zerolog.Nop())
	if err := mm.Fit(context.Background(), smallMatrix(t)); !errors.Is(err, boom) {
		t.Fatalf("Fit() error = %v, want %v", err, boom)
	}
	if mm.State() != StateUninitialized {
		t.Errorf("state after failed fit = %s, want uninitialized", mm.State())
	}
}

func TestModelState_String(t *testing.T) {
	t.Parallel()
	if StateFitting.String() != "fitting" || ModelState(42).String() != "unknown" {
		t.Error("ModelState.String() mismatch")
	}
}
