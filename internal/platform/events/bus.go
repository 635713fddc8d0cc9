// Package events carries domain events over watermill.
//
// The in-process gochannel transport is the default. EVENTS_BACKEND=redis switches
// to redis streams so several API replicas can share one audit consumer group.
package events

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/omnibus-tickets/omnibus-api/internal/platform/config"
)

const (
	// TopicAudit carries audit entries produced by the application services.
	TopicAudit = "omnibus.audit"
	// TopicTickets carries ticket lifecycle events.
	TopicTickets = "omnibus.tickets"
)

// Bus bundles a publisher and subscriber for one transport.
type Bus struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber

	closers []func() error
}

// NewBus builds the transport selected by cfg.
func NewBus(cfg config.EventsConfig, log *zap.Logger) (*Bus, error) {
	wlog := NewWatermillLogger(log)
	switch cfg.Backend {
	case "redis":
		return newRedisBus(cfg, wlog)
	default:
		return NewGoChannelBus(wlog), nil
	}
}

// NewGoChannelBus returns an in-process bus. Messages are lost on restart.
func NewGoChannelBus(logger watermill.LoggerAdapter) *Bus {
	ps := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
	return &Bus{Publisher: ps, Subscriber: ps, closers: []func() error{ps.Close}}
}

func newRedisBus(cfg config.EventsConfig, logger watermill.LoggerAdapter) (*Bus, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})

	pub, err := redisstream.NewPublisher(redisstream.PublisherConfig{Client: client}, logger)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis publisher: %w", err)
	}
	sub, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
		Client:        client,
		ConsumerGroup: cfg.ConsumerGroup,
	}, logger)
	if err != nil {
		_ = pub.Close()
		_ = client.Close()
		return nil, fmt.Errorf("redis subscriber: %w", err)
	}
	return &Bus{
		Publisher:  pub,
		Subscriber: sub,
		closers:    []func() error{sub.Close, pub.Close, client.Close},
	}, nil
}

// Close shuts the transport down in dependency order.
func (b *Bus) Close() error {
	var first error
	for _, c := range b.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
