// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package main

import (
	"fmt"

	"github.com/tomtom215/blogrec/internal/config"
	"github.com/tomtom215/blogrec/internal/events"
	"github.com/tomtom215/blogrec/internal/logging"
	"github.com/tomtom215/blogrec/internal/recommend"
	"github.com/tomtom215/blogrec/internal/supervisor"
	"github.com/tomtom215/blogrec/internal/supervisor/services"
)

// initEvents builds the action pipeline and adds its router to the
// messaging layer. It returns nil when events are disabled; actions are
// then applied inline by the HTTP handler.
func initEvents(cfg *config.Config, engine *recommend.Engine, tree *supervisor.SupervisorTree) (*events.Pipeline, error) {
	if !cfg.Events.Enabled {
		logging.Info().Msg("Event pipeline disabled (EVENTS_ENABLED=false), actions are applied inline")
		return nil, nil
	}

	logger := logging.Logger()
	pipeline, err := events.NewPipeline(&cfg.Events, engine, logger)
	if err != nil {
		return nil, fmt.Errorf("create event pipeline: %w", err)
	}
	tree.AddMessagingService(services.NewEventsService(pipeline, logger))

	logging.Info().
		Str("transport", cfg.Events.Transport).
		Str("topic", cfg.Events.Topic).
		Msg("Event pipeline added to supervisor tree")
	return pipeline, nil
}
