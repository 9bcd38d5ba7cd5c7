// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/rs/zerolog"

	"github.com/tomtom215/blogrec/internal/cache"
	"github.com/tomtom215/blogrec/internal/config"
	"github.com/tomtom215/blogrec/internal/logging"
)

const actionHandlerName = "ratings-deriver"

// dedupCapacity bounds the keys remembered by the deduplicator.
const dedupCapacity = 100000

// Pipeline owns the transport, the router and the publisher.
type Pipeline struct {
	cfg       config.EventsConfig
	transport *transport
	router    *message.Router
	publisher *Publisher
	dedup     *cache.Deduplicator
	logger    zerolog.Logger
}

// NewPipeline wires a router that feeds actions on cfg.Topic to applier.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewPipeline(cfg *config.EventsConfig, applier Applier, logger zerolog.Logger) (*Pipeline, error) {
	logger = logger.With().Str("component", "events").Logger()
	wmLogger := logging.NewWatermillAdapter(logger)

	tr, err := newTransport(cfg, wmLogger)
	if err != nil {
		return nil, err
	}

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 30 * time.Second}, wmLogger)
	if err != nil {
		_ = tr.Close()
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	p := &Pipeline{
		cfg:       *cfg,
		transport: tr,
		router:    router,
		publisher: NewPublisher(tr.publisher, cfg.Topic, NewCircuitBreaker(DefaultCircuitBreakerConfig(), logger), logger),
		dedup:     cache.NewDeduplicator(dedupCapacity, cfg.DedupTTL),
		logger:    logger,
	}

	dedup := middleware.Deduplicator{
		KeyFactory: func(msg *message.Message) (string, error) {
			if key := msg.Metadata.Get(MetadataDedupKey); key != "" {
				return key, nil
			}
			return msg.UUID, nil
		},
		Repository: p.dedup,
		Timeout:    time.Second,
	}
	retry := middleware.Retry{
		MaxRetries:      cfg.RetryMax,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		Multiplier:      2,
		Logger:          wmLogger,
	}
	router.AddMiddleware(
		p.forgetOnFailure,
		dedup.Middleware,
		retry.Middleware,
		middleware.Recoverer,
	)

	handler := NewActionHandler(applier, logger)
	router.AddConsumerHandler(actionHandlerName, cfg.Topic, tr.subscriber, handler.Handle)

	return p, nil
}

// forgetOnFailure drops the dedup key of a message that failed after all
// retries so its redelivery is not mistaken for a duplicate.
func (p *Pipeline) forgetOnFailure(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		out, err := h(msg)
		if err != nil {
			if key := msg.Metadata.Get(MetadataDedupKey); key != "" {
				p.dedup.Forget(key)
			} else {
				p.dedup.Forget(msg.UUID)
			}
			p.logger.Error().Err(err).Str("event_id", msg.UUID).Msg("Action failed after retries")
		}
		return out, err
	}
}

// Publisher returns the action publisher.
func (p *Pipeline) Publisher() *Publisher {
	return p.publisher
}

// Run consumes actions until ctx is cancelled or Close is called.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info().
		Str("transport", p.cfg.Transport).
		Str("topic", p.cfg.Topic).
		Msg("Starting action router")
	return p.router.Run(ctx)
}

// Running is closed once the router's handlers are subscribed.
func (p *Pipeline) Running() <-chan struct{} {
	return p.router.Running()
}

// Close stops the router and the transport.
func (p *Pipeline) Close() error {
	p.publisher.Close()
	routerErr := p.router.Close()
	if err := p.transport.Close(); err != nil && routerErr == nil {
		return err
	}
	return routerErr
}

// String identifies the pipeline in supervisor logs.
func (p *Pipeline) String() string {
	return "events-" + p.cfg.Transport
}

// Compile-time check that the deduplicator fits watermill's middleware.
var _ middleware.ExpiringKeyRepository = (*cache.Deduplicator)(nil)
