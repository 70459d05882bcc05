package kafka

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/tair/purchase-ingest/pkg/logger"
)

type fakeSession struct {
	ctx    context.Context
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32 { return nil }

func (s *fakeSession) MemberID() string { return "member" }

func (s *fakeSession) GenerationID() int32 { return 1 }

func (s *fakeSession) MarkOffset(topic string, partition int32, offset int64, metadata string) {}

func (s *fakeSession) Commit() {}

func (s *fakeSession) ResetOffset(topic string, partition int32, offset int64, metadata string) {}

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, metadata string) {
	s.marked = append(s.marked, msg.Offset)
}

func (s *fakeSession) Context() context.Context { return s.ctx }

type fakeClaim struct {
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string { return TopicPurchase }

func (c *fakeClaim) Partition() int32 { return 0 }

func (c *fakeClaim) InitialOffset() int64 { return 0 }

func (c *fakeClaim) HighWaterMarkOffset() int64 { return 0 }

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func newClaim(msgs ...*sarama.ConsumerMessage) *fakeClaim {
	ch := make(chan *sarama.ConsumerMessage, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	close(ch)
	return &fakeClaim{messages: ch}
}

func purchaseMessage(offset int64, body string, headers ...sarama.RecordHeader) *sarama.ConsumerMessage {
	var hs []*sarama.RecordHeader
	for i := range headers {
		hs = append(hs, &headers[i])
	}
	return &sarama.ConsumerMessage{
		Topic:   TopicPurchase,
		Offset:  offset,
		Value:   []byte(body),
		Headers: hs,
	}
}

const storefrontBody = `{
	"firstName": "Ana", "lastName": "Souza", "cpf": "123", "country": "BR",
	"cep": "01000-000", "address": "Rua A", "number": "10", "complement": "",
	"district": "Centro", "city": "Sao Paulo", "state": "SP", "phone": "11999",
	"email": "ana@example.com", "note": "", "delivery": "mail", "payment": "pix",
	"valor": 49.90,
	"cartItems": [{"id": "book-1", "quantity": 2}, {"id": "book-2", "quantity": 1}]
}`

func TestHandleMessage_HeaderlessMessageUsesDefaultType(t *testing.T) {
	c := newConsumer(nil, GroupPurchase, []string{TopicPurchase})

	var got PurchaseEvent
	c.RegisterHandler(EventTypePurchaseCreated, func(ctx context.Context, event PurchaseEvent) error {
		got = event
		return nil
	})

	h := &consumerGroupHandler{consumer: c}
	require.NoError(t, h.handleMessage(context.Background(), purchaseMessage(1, storefrontBody)))

	assert.Equal(t, "Ana", got.FirstName)
	assert.Equal(t, "01000-000", got.PostalCode)
	assert.True(t, decimal.RequireFromString("49.90").Equal(got.Total))
	assert.Equal(t, []CartItem{{ID: "book-1", Quantity: 2}, {ID: "book-2", Quantity: 1}}, got.CartItems)
}

func TestHandleMessage_HandlerErrorIsReturned(t *testing.T) {
	c := newConsumer(nil, GroupPurchase, []string{TopicPurchase})
	boom := errors.New("store down")
	c.RegisterHandler(EventTypePurchaseCreated, func(ctx context.Context, event PurchaseEvent) error {
		return boom
	})

	h := &consumerGroupHandler{consumer: c}
	err := h.handleMessage(context.Background(), purchaseMessage(1, storefrontBody))
	assert.ErrorIs(t, err, boom)
}

func TestHandleMessage_DropsUnroutableAndMalformed(t *testing.T) {
	c := newConsumer(nil, GroupPurchase, []string{TopicPurchase})
	calls := 0
	c.RegisterHandler(EventTypePurchaseCreated, func(ctx context.Context, event PurchaseEvent) error {
		calls++
		return nil
	})
	h := &consumerGroupHandler{consumer: c}

	unknown := purchaseMessage(1, storefrontBody, sarama.RecordHeader{Key: []byte(HeaderEventType), Value: []byte("refund.created")})
	assert.NoError(t, h.handleMessage(context.Background(), unknown))

	assert.NoError(t, h.handleMessage(context.Background(), purchaseMessage(2, `{"firstName":`)))

	assert.Equal(t, 0, calls)
}

func TestConsumeClaim_MarksEveryHandledMessage(t *testing.T) {
	c := newConsumer(nil, GroupPurchase, []string{TopicPurchase})
	c.RegisterHandler(EventTypePurchaseCreated, func(ctx context.Context, event PurchaseEvent) error {
		return nil
	})
	h := &consumerGroupHandler{consumer: c}

	session := &fakeSession{ctx: context.Background()}
	claim := newClaim(purchaseMessage(5, storefrontBody), purchaseMessage(6, "garbage"))

	require.NoError(t, h.ConsumeClaim(session, claim))
	assert.Equal(t, []int64{5, 6}, session.marked)
	assert.False(t, c.failed.Load())
}

func TestConsumeClaim_RedeliverLeavesOffsetUnmarked(t *testing.T) {
	c := newConsumer(nil, GroupPurchase, []string{TopicPurchase})
	c.RegisterHandler(EventTypePurchaseCreated, func(ctx context.Context, event PurchaseEvent) error {
		return errors.New("store down")
	})
	h := &consumerGroupHandler{consumer: c}

	session := &fakeSession{ctx: context.Background()}
	claim := newClaim(purchaseMessage(7, storefrontBody), purchaseMessage(8, storefrontBody))

	assert.Error(t, h.ConsumeClaim(session, claim))
	assert.Empty(t, session.marked)
	assert.True(t, c.failed.Load())
}

func TestConsumeClaim_SkipPolicyMarksFailedMessage(t *testing.T) {
	c := newConsumer(nil, GroupPurchase, []string{TopicPurchase}, WithRedeliverOnError(false))
	c.RegisterHandler(EventTypePurchaseCreated, func(ctx context.Context, event PurchaseEvent) error {
		return errors.New("store down")
	})
	h := &consumerGroupHandler{consumer: c}

	session := &fakeSession{ctx: context.Background()}
	claim := newClaim(purchaseMessage(7, storefrontBody), purchaseMessage(8, storefrontBody))

	require.NoError(t, h.ConsumeClaim(session, claim))
	assert.Equal(t, []int64{7, 8}, session.marked)
}

func TestConsumeClaim_StopsWhenSessionEnds(t *testing.T) {
	c := newConsumer(nil, GroupPurchase, []string{TopicPurchase})
	h := &consumerGroupHandler{consumer: c}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	session := &fakeSession{ctx: ctx}
	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage)}

	assert.NoError(t, h.ConsumeClaim(session, claim))
}

func TestHandleMessage_DefaultEventTypeOption(t *testing.T) {
	c := newConsumer(nil, GroupPurchase, []string{TopicPurchase}, WithDefaultEventType("order.placed"))
	calls := 0
	c.RegisterHandler(EventTypePurchaseCreated, func(ctx context.Context, event PurchaseEvent) error {
		calls++
		return nil
	})
	h := &consumerGroupHandler{consumer: c}

	require.NoError(t, h.handleMessage(context.Background(), purchaseMessage(1, storefrontBody)))
	assert.Equal(t, 0, calls)

	typed := purchaseMessage(2, storefrontBody, sarama.RecordHeader{
		Key:   []byte(HeaderEventType),
		Value: []byte(EventTypePurchaseCreated),
	})
	require.NoError(t, h.handleMessage(context.Background(), typed))
	assert.Equal(t, 1, calls)
}

func TestHandleMessage_FailureLogCarriesProducerTrace(t *testing.T) {
	var out bytes.Buffer
	prevLogger, prevPropagator := logger.Logger, otel.GetTextMapPropagator()
	logger.Logger = zerolog.New(&out)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		logger.Logger = prevLogger
		otel.SetTextMapPropagator(prevPropagator)
	})

	c := newConsumer(nil, GroupPurchase, []string{TopicPurchase})
	c.RegisterHandler(EventTypePurchaseCreated, func(ctx context.Context, event PurchaseEvent) error {
		return errors.New("store down")
	})
	h := &consumerGroupHandler{consumer: c}

	msg := purchaseMessage(3, storefrontBody, sarama.RecordHeader{
		Key:   []byte("traceparent"),
		Value: []byte("00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"),
	})
	require.Error(t, h.handleMessage(context.Background(), msg))

	assert.Contains(t, out.String(), "Failed to handle event")
	assert.Contains(t, out.String(), `"trace_id":"4bf92f3577b34da6a3ce929d0e0e4736"`)
}
