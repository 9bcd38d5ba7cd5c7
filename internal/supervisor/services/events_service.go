// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"
)

var errEventRouterStopped = errors.New("event router stopped unexpectedly")

// EventRouter is a router that can be run once, such as *events.Pipeline.
type EventRouter interface {
	Run(ctx context.Context) error
	String() string
}

// EventsService runs the action router. A watermill router cannot be run
// again once it has stopped, so after an unexpected exit the service stays
// down and the process must be restarted to resume consuming.
type EventsService struct {
	router  EventRouter
	started atomic.Bool
	logger  zerolog.Logger
}

// NewEventsService wraps router.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEventsService(router EventRouter, logger zerolog.Logger) *EventsService {
	return &EventsService{
		router: router,
		logger: logger.With().Str("service", router.String()).Logger(),
	}
}

// Serve implements suture.Service.
func (s *EventsService) Serve(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		s.logger.Error().Msg("Event router already stopped, not restarting")
		return suture.ErrDoNotRestart
	}

	err := s.router.Run(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("event router failed: %w", err)
	}
	return errEventRouterStopped
}

func (s *EventsService) String() string {
	return s.router.String()
}
