// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/blogrec/internal/logging"
	"github.com/tomtom215/blogrec/internal/metrics"
	"github.com/tomtom215/blogrec/internal/recommend"
)

// ErrPublisherClosed is returned after Close.
var ErrPublisherClosed = errors.New("publisher is closed")

// CircuitBreakerConfig configures publish protection.
type CircuitBreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultCircuitBreakerConfig opens after five consecutive failures and
// probes again after 30 seconds.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             "actions-publisher",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// NewCircuitBreaker creates a breaker that logs state changes.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewCircuitBreaker(cfg CircuitBreakerConfig, logger zerolog.Logger) *gobreaker.CircuitBreaker[any] {
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})
}

// Publisher validates actions and publishes them behind a circuit breaker.
type Publisher struct {
	publisher message.Publisher
	topic     string
	breaker   *gobreaker.CircuitBreaker[any]
	logger    zerolog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPublisher wraps pub. breaker may be nil.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewPublisher(pub message.Publisher, topic string, breaker *gobreaker.CircuitBreaker[any], logger zerolog.Logger) *Publisher {
	return &Publisher{
		publisher: pub,
		topic:     topic,
		breaker:   breaker,
		logger:    logger,
	}
}

// PublishAction validates ev and publishes it. Invalid actions return a
// *recommend.ValidationError and are never sent.
//
//nolint:gocritic // hugeParam: ev passed by value for immutability
func (p *Publisher) PublishAction(ctx context.Context, ev recommend.ActionEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	if err := recommend.ValidateAction(ev); err != nil {
		return err
	}

	msg, err := EncodeAction(ev)
	if err != nil {
		return err
	}
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set(MetadataCorrelationID, id)
	} else if id := logging.RequestIDFromContext(ctx); id != "" {
		msg.Metadata.Set(MetadataCorrelationID, id)
	}

	if p.breaker != nil {
		_, err = p.breaker.Execute(func() (any, error) {
			return nil, p.publisher.Publish(p.topic, msg)
		})
	} else {
		err = p.publisher.Publish(p.topic, msg)
	}
	metrics.RecordEventPublished(err)
	if err != nil {
		return fmt.Errorf("publish %s: %w", msg.UUID, err)
	}

	p.logger.Debug().
		Str("event_id", msg.UUID).
		Str("action", string(ev.Action)).
		Int("user_id", ev.UserID).
		Int("item_id", ev.ItemID).
		Msg("Published action")
	return nil
}

// BreakerState returns the circuit breaker state, or "disabled".
func (p *Publisher) BreakerState() string {
	if p.breaker == nil {
		return "disabled"
	}
	return p.breaker.State().String()
}

// Close stops further publishing. The underlying transport is closed by
// its owner.
func (p *Publisher) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}
