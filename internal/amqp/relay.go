package amqp

import (
	"context"

	"cashstash/internal/core"
	applog "cashstash/internal/log"
)

// Sink receives changes locally, typically a feed.Hub.
type Sink interface {
	Publish(ctx context.Context, c core.Change) error
}

// Broker is the part of Client the relay needs.
type Broker interface {
	PublishChange(ctx context.Context, c core.Change) error
	ConsumeWithRetry(ctx context.Context, queue string, handler func(context.Context, core.Change) error) error
}

// FallbackPublisher sends changes to the broker; when the broker refuses,
// the change goes straight to the local sink so this instance's
// subscribers still see it.
type FallbackPublisher struct {
	broker Broker
	local  Sink
	logger *applog.Logger
}

func NewFallbackPublisher(broker Broker, local Sink, logger *applog.Logger) *FallbackPublisher {
	if logger == nil {
		logger = applog.Discard()
	}
	return &FallbackPublisher{broker: broker, local: local, logger: logger.WithComponent(applog.ComponentAMQP)}
}

func (p *FallbackPublisher) Publish(ctx context.Context, c core.Change) error {
	if err := p.broker.PublishChange(ctx, c); err != nil {
		p.logger.WarnContext(ctx, "Broker publish failed, delivering locally",
			applog.NewFields().WithUser(c.UserID).WithError(err).ToSlice()...)
		return p.local.Publish(ctx, c)
	}
	return nil
}

// Relay feeds every change seen on the exchange into local until ctx ends.
func Relay(ctx context.Context, broker Broker, local Sink) error {
	return broker.ConsumeWithRetry(ctx, "", func(ctx context.Context, c core.Change) error {
		return local.Publish(ctx, c)
	})
}
