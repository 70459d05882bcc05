package query

import (
	"context"
	"fmt"

	"github.com/tair/purchase-ingest/internal/purchase/domain"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

// ListPurchasesQuery represents the query to list purchases, newest first
type ListPurchasesQuery struct {
	Limit  int
	Offset int
}

// ListPurchasesHandler handles list purchases query
type ListPurchasesHandler struct {
	repo domain.PurchaseRepository
}

// NewListPurchasesHandler creates a new list purchases handler
func NewListPurchasesHandler(repo domain.PurchaseRepository) *ListPurchasesHandler {
	return &ListPurchasesHandler{repo: repo}
}

// Handle executes the list purchases query
func (h *ListPurchasesHandler) Handle(ctx context.Context, query ListPurchasesQuery) ([]domain.Purchase, error) {
	// Set defaults
	if query.Limit <= 0 {
		query.Limit = defaultListLimit
	}
	if query.Limit > maxListLimit {
		query.Limit = maxListLimit
	}
	if query.Offset < 0 {
		query.Offset = 0
	}

	purchases, err := h.repo.FindAll(ctx, query.Limit, query.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}

	return purchases, nil
}
