// Package mq implements the durable message-queue topics the pipeline
// drains (new-message, buffered-message, skill-learn-task,
// skill-learn-distilled), on top of ThreeDotsLabs/watermill. Unlike the
// teacher's internal/event.Bus — which calls subscribers directly in-process
// and has no redelivery story — this package keeps watermill's own
// Router/Publisher/Subscriber pair so handler failures nack a message and
// let watermill's at-least-once delivery redeliver it, which the Buffer
// Controller and Task Agent both depend on for correctness.
package mq

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Topic names, matching the coordination-store/MQ vocabulary named in
// spec.md §6.
const (
	TopicNewMessage           = "new-message"
	TopicBufferedMessage      = "buffered-message"
	TopicSkillLearnTask       = "skill-learn-task"
	TopicSkillLearnDistilled  = "skill-learn-distilled"
)

// Bus is a thin wrapper pairing a watermill Publisher with a Router so
// callers register typed Handler funcs per topic instead of dealing with
// raw *message.Message themselves.
type Bus struct {
	pub    message.Publisher
	sub    message.Subscriber
	router *message.Router
	logger watermill.LoggerAdapter
}

// New constructs a Bus backed by the in-process gochannel transport. A
// future durable broker (e.g. NATS/Kafka) slots in by swapping pub/sub here
// without changing any Handler registration call site.
func New() (*Bus, error) {
	logger := watermill.NopLogger{}
	gc := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 256,
		Persistent:          true,
	}, logger)

	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, fmt.Errorf("mq: new router: %w", err)
	}
	// Recoverer turns a handler panic into a returned error, so the message
	// is nacked and redelivered like any other handler failure.
	router.AddMiddleware(middleware.Recoverer)

	return &Bus{pub: gc, sub: gc, router: router, logger: logger}, nil
}

// Publish sends payload to topic. Handlers are invoked at-least-once;
// callers must make their handling idempotent (the Buffer Controller's
// staleness check and the Task Agent's per-iteration transaction both are).
func (b *Bus) Publish(ctx context.Context, topic string, payload []byte, metadata map[string]string) error {
	msg := message.NewMessage(watermill.NewUUID(), payload)
	for k, v := range metadata {
		msg.Metadata.Set(k, v)
	}
	msg.SetContext(ctx)
	return b.pub.Publish(topic, msg)
}

// Handler processes one message. Returning an error nacks the message,
// triggering watermill redelivery; returning nil acks it.
type Handler func(ctx context.Context, payload []byte, metadata map[string]string) error

// Subscribe registers a Handler for topic under handlerName (used for
// router metrics/logging disambiguation when multiple handlers share a
// topic).
func (b *Bus) Subscribe(handlerName, topic string, fn Handler) {
	b.router.AddNoPublisherHandler(handlerName, topic, b.sub, func(msg *message.Message) error {
		md := make(map[string]string, len(msg.Metadata))
		for k := range msg.Metadata {
			md[k] = msg.Metadata.Get(k)
		}
		return fn(msg.Context(), msg.Payload, md)
	})
}

// Run blocks draining all registered subscriptions until ctx is canceled.
func (b *Bus) Run(ctx context.Context) error {
	return b.router.Run(ctx)
}

// Close stops the router and closes the pub/sub transport.
func (b *Bus) Close() error {
	if err := b.router.Close(); err != nil {
		return err
	}
	if closer, ok := b.pub.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// Running reports whether the router has finished starting up, useful for
// readiness probes.
func (b *Bus) Running() <-chan struct{} {
	return b.router.Running()
}
