// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/blogrec/internal/logging"
	"github.com/tomtom215/blogrec/internal/recommend"
)

// APIResponse is the envelope of every JSON response.
type APIResponse struct {
	Status   string    `json:"status"`
	Data     any       `json:"data"`
	Metadata Metadata  `json:"metadata"`
	Error    *APIError `json:"error,omitempty"`
}

// Metadata describes the response itself.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id,omitempty"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError is the error body.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// respondJSON writes response with status.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, response *APIResponse) {
	response.Metadata.Timestamp = time.Now()
	if r != nil {
		response.Metadata.RequestID = logging.RequestIDFromContext(r.Context())
	}

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func respondOK(w http.ResponseWriter, r *http.Request, status int, data any, started time.Time) {
	respondJSON(w, r, status, &APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: Metadata{QueryTimeMS: time.Since(started).Milliseconds()},
	})
}

// respondError writes an error envelope. err is logged, never returned to
// the client.
func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	if err != nil {
		ev := logging.Warn()
		if status >= http.StatusInternalServerError {
			ev = logging.Error()
		}
		if r != nil {
			ev = ev.Str("request_id", logging.RequestIDFromContext(r.Context()))
		}
		ev.Str("code", sanitizeLogValue(code)).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("API error")
	}

	respondJSON(w, r, status, &APIResponse{
		Status: "error",
		Error:  &APIError{Code: code, Message: message},
	})
}

// respondDomainError maps recommend errors to HTTP statuses.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *recommend.ValidationError
	switch {
	case errors.As(err, &verr):
		respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", verr.Error(), err)
	case errors.Is(err, recommend.ErrValidation):
		respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request", err)
	case errors.Is(err, recommend.ErrRefreshInProgress):
		respondError(w, r, http.StatusConflict, "REFRESH_IN_PROGRESS", "A refresh is already running", err)
	case errors.Is(err, recommend.ErrDataUnavailable):
		respondError(w, r, http.StatusServiceUnavailable, "DATA_UNAVAILABLE", "Storage is temporarily unavailable", err)
	case errors.Is(err, recommend.ErrCheckpointCorruption):
		respondError(w, r, http.StatusInternalServerError, "CHECKPOINT_CORRUPTION", "Model checkpoint is unusable", err)
	default:
		respondError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", err)
	}
}

// sanitizeLogValue escapes control characters so request data cannot forge
// log lines.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&b, "\\x%02x", r)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
