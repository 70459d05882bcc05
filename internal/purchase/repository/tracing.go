package repository

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tair/purchase-ingest/internal/purchase/domain"
)

var tracer = otel.Tracer("purchase-repository")

// TracingPurchaseRepository wraps a repository with tracing
type TracingPurchaseRepository struct {
	next   domain.PurchaseRepository
	driver string
}

// NewTracingPurchaseRepository creates a new repository with tracing
func NewTracingPurchaseRepository(next domain.PurchaseRepository, driver string) *TracingPurchaseRepository {
	return &TracingPurchaseRepository{next: next, driver: driver}
}

// Save with tracing
func (r *TracingPurchaseRepository) Save(ctx context.Context, purchase *domain.Purchase) error {
	ctx, span := tracer.Start(ctx, "repository.Save",
		trace.WithAttributes(
			attribute.String("db.driver", r.driver),
			attribute.String("purchase.id", purchase.ID.String()),
			attribute.Int("purchase.line_items", len(purchase.LineItems)),
		),
	)
	defer span.End()

	if err := r.next.Save(ctx, purchase); err != nil {
		addDBErrorToSpan(span, err)
		return err
	}
	return nil
}

// FindByID with tracing
func (r *TracingPurchaseRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Purchase, error) {
	ctx, span := tracer.Start(ctx, "repository.FindByID",
		trace.WithAttributes(
			attribute.String("db.driver", r.driver),
			attribute.String("purchase.id", id.String()),
		),
	)
	defer span.End()

	purchase, err := r.next.FindByID(ctx, id)
	if err != nil {
		addDBErrorToSpan(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("purchase.line_items", len(purchase.LineItems)))
	return purchase, nil
}

// FindAll with tracing
func (r *TracingPurchaseRepository) FindAll(ctx context.Context, limit, offset int) ([]domain.Purchase, error) {
	ctx, span := tracer.Start(ctx, "repository.FindAll",
		trace.WithAttributes(
			attribute.String("db.driver", r.driver),
			attribute.Int("query.limit", limit),
			attribute.Int("query.offset", offset),
		),
	)
	defer span.End()

	purchases, err := r.next.FindAll(ctx, limit, offset)
	if err != nil {
		addDBErrorToSpan(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("result.count", len(purchases)))
	return purchases, nil
}

func addDBErrorToSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
