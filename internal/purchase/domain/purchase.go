package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Purchase is the durable record of one purchase event. It is created once by
// the ingest handler and never updated.
type Purchase struct {
	ID         uuid.UUID       `json:"id"`
	FirstName  string          `json:"first_name"`
	LastName   string          `json:"last_name"`
	TaxID      string          `json:"tax_id"`
	Country    string          `json:"country"`
	PostalCode string          `json:"postal_code"`
	Street     string          `json:"street"`
	Number     string          `json:"number"`
	Complement string          `json:"complement"`
	District   string          `json:"district"`
	City       string          `json:"city"`
	Region     string          `json:"region"`
	Phone      string          `json:"phone"`
	Email      string          `json:"email"`
	Note       string          `json:"note"`
	Delivery   string          `json:"delivery"`
	Payment    string          `json:"payment"`
	Total      decimal.Decimal `json:"total"`
	LineItems  []LineItem      `json:"line_items"`
	CreatedAt  time.Time       `json:"created_at"`
}

// LineItem is one cart entry
type LineItem struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

// ItemCount returns the total number of units across all line items
func (p *Purchase) ItemCount() int {
	n := 0
	for _, item := range p.LineItems {
		n += item.Quantity
	}
	return n
}

var (
	ErrPurchaseNotFound = errors.New("purchase not found")
	ErrDuplicateID      = errors.New("purchase id already exists")
)

// StoreError reports a failed store operation
type StoreError struct {
	Op  string
	ID  uuid.UUID
	Err error
}

func (e *StoreError) Error() string {
	if e.ID == uuid.Nil {
		return fmt.Sprintf("purchase store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("purchase store %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// PurchaseRepository defines the contract for purchase data access. There is
// deliberately no update or delete.
type PurchaseRepository interface {
	Save(ctx context.Context, purchase *Purchase) error
	FindByID(ctx context.Context, id uuid.UUID) (*Purchase, error)
	FindAll(ctx context.Context, limit, offset int) ([]Purchase, error)
}
