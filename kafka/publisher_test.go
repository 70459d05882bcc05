package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishPurchase_SendsEventUnchanged(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	defer producer.Close()

	event := PurchaseEvent{
		FirstName: "Ana",
		Total:     decimal.RequireFromString("49.90"),
		CartItems: []CartItem{{ID: "book-1", Quantity: 2}},
	}

	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got PurchaseEvent
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got.FirstName != "Ana" || !got.Total.Equal(event.Total) || len(got.CartItems) != 1 {
			return errors.New("payload changed in transit")
		}
		return nil
	})

	p := NewPublisherWithProducer(producer, "")
	require.NoError(t, p.PublishPurchase(context.Background(), event))
}

func TestPublishPurchase_ProducerFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	defer producer.Close()

	producer.ExpectSendMessageAndFail(errors.New("broker unavailable"))

	p := NewPublisherWithProducer(producer, TopicPurchase)
	err := p.PublishPurchase(context.Background(), PurchaseEvent{})
	assert.Error(t, err)
}
