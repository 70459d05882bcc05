package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tair/purchase-ingest/internal/purchase/domain"
	"github.com/tair/purchase-ingest/kafka"
	"github.com/tair/purchase-ingest/pkg/logger"
)

var tracer = otel.Tracer("purchase-ingest")

// Notifier tells the operator about a purchase
type Notifier interface {
	Notify(ctx context.Context, event kafka.PurchaseEvent) error
}

// IDGenerator mints purchase identifiers
type IDGenerator func() uuid.UUID

// IngestPurchaseHandler turns one purchase event into a stored record and a
// best-effort operator notification. It keeps no state between events.
//
// There is no deduplication: a redelivered event is stored again under a new
// ID and notified again.
type IngestPurchaseHandler struct {
	repo     domain.PurchaseRepository
	notifier Notifier
	newID    IDGenerator
	now      func() time.Time
	metrics  *IngestMetrics
	log      zerolog.Logger
}

// NewIngestPurchaseHandler creates a new ingest handler
func NewIngestPurchaseHandler(
	repo domain.PurchaseRepository,
	notifier Notifier,
	newID IDGenerator,
	metrics *IngestMetrics,
	log zerolog.Logger,
) *IngestPurchaseHandler {
	if newID == nil {
		newID = uuid.New
	}
	if metrics == nil {
		metrics = NewIngestMetrics(nil)
	}
	return &IngestPurchaseHandler{
		repo:     repo,
		notifier: notifier,
		newID:    newID,
		now:      time.Now,
		metrics:  metrics,
		log:      log,
	}
}

// Handle persists the event and then notifies. Only a store failure is
// returned; the caller must then treat the delivery as not consumed.
func (h *IngestPurchaseHandler) Handle(ctx context.Context, event kafka.PurchaseEvent) error {
	start := time.Now()
	defer func() {
		h.metrics.duration.Observe(time.Since(start).Seconds())
	}()

	ctx, span := tracer.Start(ctx, "purchase.ingest")
	defer span.End()

	purchase := h.buildPurchase(event)
	log := logger.FromContext(ctx, h.log).With().
		Str("purchase_id", purchase.ID.String()).
		Int("line_items", len(purchase.LineItems)).
		Int("units", purchase.ItemCount()).
		Str("total", purchase.Total.StringFixed(2)).
		Logger()

	span.SetAttributes(
		attribute.String("purchase.id", purchase.ID.String()),
		attribute.Int("purchase.line_items", len(purchase.LineItems)),
		attribute.Int("purchase.units", purchase.ItemCount()),
	)

	if err := h.repo.Save(ctx, purchase); err != nil {
		h.metrics.ingested.WithLabelValues(resultStoreFailed).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to store purchase")
		log.Error().Err(err).Msg("Failed to store purchase")
		return fmt.Errorf("failed to store purchase: %w", err)
	}
	h.metrics.ingested.WithLabelValues(resultStored).Inc()
	log.Info().Msg("Purchase stored")

	// The record is committed; from here on nothing can fail the delivery.
	if err := h.notifier.Notify(ctx, event); err != nil {
		h.metrics.notifications.WithLabelValues(notifyFailed).Inc()
		span.AddEvent("notification failed")
		log.Warn().Err(err).Msg("Failed to notify operator about purchase")
		return nil
	}
	h.metrics.notifications.WithLabelValues(notifySent).Inc()

	span.SetStatus(codes.Ok, "Purchase ingested")
	return nil
}

func (h *IngestPurchaseHandler) buildPurchase(event kafka.PurchaseEvent) *domain.Purchase {
	items := make([]domain.LineItem, 0, len(event.CartItems))
	for _, item := range event.CartItems {
		items = append(items, domain.LineItem{ID: item.ID, Quantity: item.Quantity})
	}

	return &domain.Purchase{
		ID:         h.newID(),
		FirstName:  event.FirstName,
		LastName:   event.LastName,
		TaxID:      event.TaxID,
		Country:    event.Country,
		PostalCode: event.PostalCode,
		Street:     event.Street,
		Number:     event.Number,
		Complement: event.Complement,
		District:   event.District,
		City:       event.City,
		Region:     event.Region,
		Phone:      event.Phone,
		Email:      event.Email,
		Note:       event.Note,
		Delivery:   event.Delivery,
		Payment:    event.Payment,
		Total:      event.Total,
		LineItems:  items,
		CreatedAt:  h.now().UTC(),
	}
}
