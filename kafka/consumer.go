package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/purchase-ingest/pkg/logger"
)

// Consumer wraps Kafka consumer
type Consumer struct {
	consumer      sarama.ConsumerGroup
	brokers       []string
	groupID       string
	topics        []string
	handlers      map[string]EventHandler
	handlersMutex sync.RWMutex

	defaultEventType string
	redeliverOnError bool
	retryBackoff     time.Duration

	// set by a claim that stopped on a handler error; the consume loop backs off once
	failed atomic.Bool
}

// EventHandler is a function that handles events. A non-nil error means the
// delivery was not consumed.
type EventHandler func(ctx context.Context, event PurchaseEvent) error

// ConsumerOption customizes a Consumer
type ConsumerOption func(*Consumer)

// WithRedeliverOnError controls what happens when a handler fails. When true the
// offset stays uncommitted and the claim restarts so the message is delivered
// again; when false the failure is logged and the message is skipped.
func WithRedeliverOnError(redeliver bool) ConsumerOption {
	return func(c *Consumer) { c.redeliverOnError = redeliver }
}

// WithRetryBackoff sets the pause before re-joining after a failed claim
func WithRetryBackoff(d time.Duration) ConsumerOption {
	return func(c *Consumer) { c.retryBackoff = d }
}

// WithDefaultEventType sets the event type assumed for messages without an
// event_type header.
func WithDefaultEventType(eventType string) ConsumerOption {
	return func(c *Consumer) { c.defaultEventType = eventType }
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(brokers []string, groupID string, topics []string, opts ...ConsumerOption) (*Consumer, error) {
	config := sarama.NewConfig()
	config.Version = sarama.V2_6_0_0
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	c := newConsumer(group, groupID, topics, opts...)
	c.brokers = brokers

	logger.Logger.Info().
		Strs("brokers", brokers).
		Str("group_id", groupID).
		Strs("topics", topics).
		Bool("redeliver_on_error", c.redeliverOnError).
		Msg("Kafka consumer initialized")

	return c, nil
}

func newConsumer(group sarama.ConsumerGroup, groupID string, topics []string, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		consumer:         group,
		groupID:          groupID,
		topics:           topics,
		handlers:         make(map[string]EventHandler),
		defaultEventType: EventTypePurchaseCreated,
		redeliverOnError: true,
		retryBackoff:     2 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterHandler registers an event handler for a specific event type
func (c *Consumer) RegisterHandler(eventType string, handler EventHandler) {
	c.handlersMutex.Lock()
	defer c.handlersMutex.Unlock()
	c.handlers[eventType] = handler
	logger.Logger.Info().
		Str("event_type", eventType).
		Msg("Event handler registered")
}

// Start starts consuming messages in the background until ctx is cancelled
func (c *Consumer) Start(ctx context.Context) error {
	handler := &consumerGroupHandler{
		consumer: c,
	}

	go func() {
		for {
			if err := c.consumer.Consume(ctx, c.topics, handler); err != nil {
				logger.Logger.Error().
					Err(err).
					Msg("Error from consumer")
			}
			if ctx.Err() != nil {
				logger.Logger.Info().Msg("Consumer context cancelled, stopping...")
				return
			}
			if c.failed.Swap(false) {
				select {
				case <-ctx.Done():
					return
				case <-time.After(c.retryBackoff):
				}
			}
		}
	}()

	go func() {
		for err := range c.consumer.Errors() {
			logger.Logger.Error().
				Err(err).
				Msg("Consumer error")
		}
	}()

	logger.Logger.Info().
		Strs("topics", c.topics).
		Str("group_id", c.groupID).
		Msg("Kafka consumer started")

	return nil
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	if c.consumer != nil {
		return c.consumer.Close()
	}
	return nil
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	consumer *Consumer
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.handleMessage(session.Context(), message); err != nil {
				if h.consumer.redeliverOnError {
					h.consumer.failed.Store(true)
					logger.Warn(session.Context()).
						Err(err).
						Str("topic", message.Topic).
						Int32("partition", message.Partition).
						Int64("offset", message.Offset).
						Msg("Offset left uncommitted, claim will restart for redelivery")
					return err
				}
				logger.Warn(session.Context()).
					Err(err).
					Str("topic", message.Topic).
					Int32("partition", message.Partition).
					Int64("offset", message.Offset).
					Msg("Skipping failed message")
			}
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// handleMessage returns an error only when a registered handler failed.
// Undecodable or unroutable messages can never succeed and are dropped.
func (h *consumerGroupHandler) handleMessage(ctx context.Context, message *sarama.ConsumerMessage) error {
	// Extract trace context from Kafka headers
	carrier := propagation.MapCarrier{}
	for _, header := range message.Headers {
		key := string(header.Key)
		if key == "traceparent" || key == "tracestate" {
			carrier[key] = string(header.Value)
		}
	}
	ctx = otel.GetTextMapPropagator().Extract(ctx, carrier)

	tracer := otel.Tracer("kafka-consumer")
	ctx, span := tracer.Start(ctx, "kafka.consume.purchase",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.source", message.Topic),
			attribute.String("messaging.source_kind", "topic"),
			attribute.Int("messaging.kafka.partition", int(message.Partition)),
			attribute.Int64("messaging.kafka.offset", message.Offset),
		),
	)
	defer span.End()

	logger.Debug(ctx).
		Str("topic", message.Topic).
		Int32("partition", message.Partition).
		Int64("offset", message.Offset).
		Msg("Received message")

	eventType := ""
	eventID := ""
	for _, header := range message.Headers {
		switch string(header.Key) {
		case HeaderEventType:
			eventType = string(header.Value)
		case HeaderEventID:
			eventID = string(header.Value)
		}
	}
	if eventType == "" {
		eventType = h.consumer.defaultEventType
	}

	span.SetAttributes(
		attribute.String("event.type", eventType),
		attribute.String("event.id", eventID),
	)

	h.consumer.handlersMutex.RLock()
	handler, exists := h.consumer.handlers[eventType]
	h.consumer.handlersMutex.RUnlock()

	if !exists {
		span.SetStatus(codes.Error, "No handler registered")
		logger.Warn(ctx).
			Str("event_type", eventType).
			Msg("No handler registered for event type")
		return nil
	}

	switch eventType {
	case EventTypePurchaseCreated:
		var event PurchaseEvent
		if err := json.Unmarshal(message.Value, &event); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to unmarshal event")
			logger.Error(ctx).
				Err(err).
				Str("event_type", eventType).
				Int64("offset", message.Offset).
				Msg("Failed to unmarshal event")
			return nil
		}

		span.SetAttributes(attribute.Int("purchase.item_count", len(event.CartItems)))

		if err := handler(ctx, event); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to handle event")
			logger.Error(ctx).
				Err(err).
				Str("event_type", eventType).
				Str("event_id", eventID).
				Msg("Failed to handle event")
			return err
		}

		span.SetStatus(codes.Ok, "Event handled successfully")
		logger.Info(ctx).
			Str("event_type", eventType).
			Str("event_id", eventID).
			Int("item_count", len(event.CartItems)).
			Msg("Event handled successfully")

	default:
		span.SetStatus(codes.Error, "Unknown event type")
		logger.Warn(ctx).
			Str("event_type", eventType).
			Msg("Unknown event type")
	}

	return nil
}
