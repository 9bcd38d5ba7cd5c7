// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package events

import (
	"context"
	"errors"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/tomtom215/blogrec/internal/logging"
	"github.com/tomtom215/blogrec/internal/metrics"
	"github.com/tomtom215/blogrec/internal/recommend"
)

// Applier records an action in the ratings ledger. *recommend.Engine
// satisfies it.
type Applier interface {
	Apply(ctx context.Context, ev recommend.ActionEvent) (recommend.Outcome, error)
}

// ActionHandler consumes action messages.
type ActionHandler struct {
	applier Applier
	logger  zerolog.Logger
}

// NewActionHandler returns a handler applying actions through applier.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewActionHandler(applier Applier, logger zerolog.Logger) *ActionHandler {
	return &ActionHandler{applier: applier, logger: logger}
}

// Handle decodes and applies one message. Undecodable or invalid actions are
// acknowledged and dropped; anything else that fails is returned so the
// router retries it.
func (h *ActionHandler) Handle(msg *message.Message) error {
	ctx := msg.Context()
	if id := msg.Metadata.Get(MetadataCorrelationID); id != "" {
		ctx = logging.ContextWithCorrelationID(ctx, id)
	} else {
		ctx = logging.ContextWithNewCorrelationID(ctx)
	}
	log := logging.Ctx(ctx, h.logger)

	payload, err := DecodeAction(msg)
	if err != nil {
		metrics.RecordEventConsumed("invalid")
		log.Warn().Err(err).Str("event_id", msg.UUID).Msg("Dropping undecodable action")
		return nil
	}

	outcome, err := h.applier.Apply(ctx, payload.Event())
	switch {
	case errors.Is(err, recommend.ErrValidation):
		metrics.RecordEventConsumed("invalid")
		log.Warn().Err(err).Str("event_id", payload.EventID).Msg("Dropping invalid action")
		return nil
	case err != nil:
		metrics.RecordEventConsumed("error")
		return err
	}

	metrics.RecordEventConsumed(outcome.String())
	log.Debug().
		Str("event_id", payload.EventID).
		Str("action", payload.Action).
		Int("user_id", payload.UserID).
		Int("item_id", payload.ItemID).
		Str("outcome", outcome.String()).
		Msg("Applied action")
	return nil
}
