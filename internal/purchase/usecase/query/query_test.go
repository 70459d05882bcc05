package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/purchase-ingest/internal/purchase/domain"
)

type stubRepository struct {
	byID       map[uuid.UUID]*domain.Purchase
	all        []domain.Purchase
	err        error
	findCalls  int
	lastLimit  int
	lastOffset int
}

func (r *stubRepository) Save(context.Context, *domain.Purchase) error {
	return errors.New("read only")
}

func (r *stubRepository) FindByID(_ context.Context, id uuid.UUID) (*domain.Purchase, error) {
	r.findCalls++
	if r.err != nil {
		return nil, r.err
	}
	p, ok := r.byID[id]
	if !ok {
		return nil, &domain.StoreError{Op: "find", ID: id, Err: domain.ErrPurchaseNotFound}
	}
	return p, nil
}

func (r *stubRepository) FindAll(_ context.Context, limit, offset int) ([]domain.Purchase, error) {
	r.lastLimit = limit
	r.lastOffset = offset
	if r.err != nil {
		return nil, r.err
	}
	return r.all, nil
}

type fakeCache struct {
	entries map[uuid.UUID]*domain.Purchase
	getErr  error
	setErr  error
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[uuid.UUID]*domain.Purchase)}
}

func (c *fakeCache) Get(_ context.Context, id uuid.UUID) (*domain.Purchase, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	p, ok := c.entries[id]
	if !ok {
		return nil, ErrCacheMiss
	}
	return p, nil
}

func (c *fakeCache) Set(_ context.Context, p *domain.Purchase) error {
	c.sets++
	if c.setErr != nil {
		return c.setErr
	}
	c.entries[p.ID] = p
	return nil
}

func samplePurchase() *domain.Purchase {
	return &domain.Purchase{
		ID:        uuid.New(),
		FirstName: "Ana",
		Total:     decimal.RequireFromString("49.90"),
		LineItems: []domain.LineItem{{ID: "book-1", Quantity: 2}},
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestGetPurchase_ReadThroughCache(t *testing.T) {
	p := samplePurchase()
	repo := &stubRepository{byID: map[uuid.UUID]*domain.Purchase{p.ID: p}}
	cache := newFakeCache()
	h := NewGetPurchaseHandler(repo, cache, zerolog.Nop())

	got, err := h.Handle(context.Background(), GetPurchaseQuery{ID: p.ID})
	require.NoError(t, err)
	assert.Equal(t, p, got)
	assert.Equal(t, 1, repo.findCalls)
	assert.Equal(t, 1, cache.sets)

	got, err = h.Handle(context.Background(), GetPurchaseQuery{ID: p.ID})
	require.NoError(t, err)
	assert.Equal(t, p, got)
	assert.Equal(t, 1, repo.findCalls, "second read should be served from cache")
}

func TestGetPurchase_CacheFailuresFallBackToStore(t *testing.T) {
	p := samplePurchase()
	repo := &stubRepository{byID: map[uuid.UUID]*domain.Purchase{p.ID: p}}
	cache := newFakeCache()
	cache.getErr = errors.New("redis: connection refused")
	cache.setErr = errors.New("redis: connection refused")
	h := NewGetPurchaseHandler(repo, cache, zerolog.Nop())

	got, err := h.Handle(context.Background(), GetPurchaseQuery{ID: p.ID})

	require.NoError(t, err)
	assert.Equal(t, p, got)
	assert.Equal(t, 1, repo.findCalls)
}

func TestGetPurchase_WithoutCache(t *testing.T) {
	p := samplePurchase()
	repo := &stubRepository{byID: map[uuid.UUID]*domain.Purchase{p.ID: p}}
	h := NewGetPurchaseHandler(repo, nil, zerolog.Nop())

	got, err := h.Handle(context.Background(), GetPurchaseQuery{ID: p.ID})

	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
}

func TestGetPurchase_NotFound(t *testing.T) {
	repo := &stubRepository{byID: map[uuid.UUID]*domain.Purchase{}}
	cache := newFakeCache()
	h := NewGetPurchaseHandler(repo, cache, zerolog.Nop())

	_, err := h.Handle(context.Background(), GetPurchaseQuery{ID: uuid.New()})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPurchaseNotFound)
	assert.Zero(t, cache.sets)
}

func TestGetPurchase_NilID(t *testing.T) {
	repo := &stubRepository{}
	h := NewGetPurchaseHandler(repo, nil, zerolog.Nop())

	_, err := h.Handle(context.Background(), GetPurchaseQuery{ID: uuid.Nil})

	assert.ErrorIs(t, err, ErrInvalidPurchaseID)
	assert.Zero(t, repo.findCalls)
}

func TestListPurchases_Paging(t *testing.T) {
	tests := []struct {
		name       string
		query      ListPurchasesQuery
		wantLimit  int
		wantOffset int
	}{
		{name: "defaults", query: ListPurchasesQuery{}, wantLimit: 10, wantOffset: 0},
		{name: "explicit", query: ListPurchasesQuery{Limit: 25, Offset: 50}, wantLimit: 25, wantOffset: 50},
		{name: "capped", query: ListPurchasesQuery{Limit: 1000}, wantLimit: 100, wantOffset: 0},
		{name: "negative offset", query: ListPurchasesQuery{Limit: 5, Offset: -3}, wantLimit: 5, wantOffset: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &stubRepository{all: []domain.Purchase{*samplePurchase()}}
			h := NewListPurchasesHandler(repo)

			got, err := h.Handle(context.Background(), tt.query)

			require.NoError(t, err)
			assert.Len(t, got, 1)
			assert.Equal(t, tt.wantLimit, repo.lastLimit)
			assert.Equal(t, tt.wantOffset, repo.lastOffset)
		})
	}
}

func TestListPurchases_StoreError(t *testing.T) {
	dbErr := errors.New("connection reset")
	h := NewListPurchasesHandler(&stubRepository{err: dbErr})

	_, err := h.Handle(context.Background(), ListPurchasesQuery{})

	assert.ErrorIs(t, err, dbErr)
}

func TestCacheKey(t *testing.T) {
	id := uuid.MustParse("6f1c2d3e-4a5b-4c6d-8e7f-0a1b2c3d4e5f")
	assert.Equal(t, "purchase:6f1c2d3e-4a5b-4c6d-8e7f-0a1b2c3d4e5f", cacheKey(id))
}
