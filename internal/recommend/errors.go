// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package recommend

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed actions and ratings. Never retried.
	ErrValidation = errors.New("validation failed")

	// ErrColdStart means there is no prior model state to resume from.
	ErrColdStart = errors.New("cold start")

	// ErrCheckpointMissing is returned when no checkpoint exists for a model.
	ErrCheckpointMissing = fmt.Errorf("checkpoint missing: %w", ErrColdStart)

	// ErrCheckpointCorruption means a checkpoint exists but cannot be used.
	// The pipeline halts rather than train over it.
	ErrCheckpointCorruption = errors.New("checkpoint corruption")

	// ErrDataUnavailable means a backing store could not be reached.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrAlreadyExists reports an idempotent duplicate action.
	ErrAlreadyExists = errors.New("already exists")

	// ErrNotFitted is returned by Persist and PredictTopK before a fit.
	ErrNotFitted = errors.New("model not fitted")

	// ErrRefreshInProgress is returned when another refresh holds the lock.
	ErrRefreshInProgress = errors.New("refresh already in progress")
)

// ValidationError describes one rejected field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// IsRetryable reports whether a refresh failure is worth retrying later.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCheckpointCorruption) || errors.Is(err, ErrValidation) {
		return false
	}
	return true
}
