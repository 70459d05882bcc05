package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tair/purchase-ingest/internal/purchase/domain"
)

// ErrInvalidPurchaseID is returned for the nil uuid
var ErrInvalidPurchaseID = errors.New("invalid purchase id")

// GetPurchaseQuery represents the query to get a purchase by ID
type GetPurchaseQuery struct {
	ID uuid.UUID
}

// GetPurchaseHandler handles get purchase query
type GetPurchaseHandler struct {
	repo  domain.PurchaseRepository
	cache PurchaseCache
	log   zerolog.Logger
}

// NewGetPurchaseHandler creates a new get purchase handler. cache may be nil.
func NewGetPurchaseHandler(repo domain.PurchaseRepository, cache PurchaseCache, log zerolog.Logger) *GetPurchaseHandler {
	return &GetPurchaseHandler{repo: repo, cache: cache, log: log}
}

// Handle executes the get purchase query. Cache failures fall through to the store.
func (h *GetPurchaseHandler) Handle(ctx context.Context, query GetPurchaseQuery) (*domain.Purchase, error) {
	if query.ID == uuid.Nil {
		return nil, ErrInvalidPurchaseID
	}

	if h.cache != nil {
		purchase, err := h.cache.Get(ctx, query.ID)
		if err == nil {
			return purchase, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			h.log.Warn().Err(err).Str("purchase_id", query.ID.String()).Msg("Purchase cache read failed")
		}
	}

	purchase, err := h.repo.FindByID(ctx, query.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase: %w", err)
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, purchase); err != nil {
			h.log.Warn().Err(err).Str("purchase_id", query.ID.String()).Msg("Purchase cache write failed")
		}
	}

	return purchase, nil
}
