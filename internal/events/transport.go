// Blogrec - Blog Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/blogrec

package events

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/blogrec/internal/config"
)

// Transport names accepted in config.EventsConfig.Transport.
const (
	TransportGoChannel = "gochannel"
	TransportNATS      = "nats"
)

// transport is the publisher/subscriber pair behind the pipeline.
type transport struct {
	publisher  message.Publisher
	subscriber message.Subscriber
}

func newTransport(cfg *config.EventsConfig, logger watermill.LoggerAdapter) (*transport, error) {
	switch cfg.Transport {
	case TransportGoChannel, "":
		pubSub := gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            256,
			BlockPublishUntilSubscriberAck: false,
		}, logger)
		return &transport{publisher: pubSub, subscriber: pubSub}, nil
	case TransportNATS:
		return newNATSTransport(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown events transport %q", cfg.Transport)
	}
}

// natsOptions returns connection options with reconnect logging. Core NATS
// is used; the queue group spreads actions over the running instances.
func natsOptions(logger watermill.LoggerAdapter) []natsgo.Option {
	return []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}
}

func newNATSTransport(cfg *config.EventsConfig, logger watermill.LoggerAdapter) (*transport, error) {
	marshaler := &wmNats.NATSMarshaler{}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.NATSURL,
		NatsOptions: natsOptions(logger),
		Marshaler:   marshaler,
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create nats publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.NATSURL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: 1,
		CloseTimeout:     30 * time.Second,
		AckWaitTimeout:   30 * time.Second,
		NatsOptions:      natsOptions(logger),
		Unmarshaler:      marshaler,
		JetStream:        wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create nats subscriber: %w", err)
	}

	return &transport{publisher: pub, subscriber: sub}, nil
}

func (t *transport) Close() error {
	var firstErr error
	if err := t.publisher.Close(); err != nil {
		firstErr = err
	}
	// gochannel uses one value for both sides.
	if closer, ok := t.subscriber.(message.Publisher); !ok || closer != t.publisher {
		if err := t.subscriber.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
