package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/tair/purchase-ingest/internal/purchase/codec"
	"github.com/tair/purchase-ingest/internal/purchase/domain"
)

const uniqueViolation = pq.ErrorCode("23505")

const purchaseColumns = `id, first_name, last_name, cpf, country, cep, address, number,
	complement, district, city, state, phone, email, note, delivery, payment,
	valor, cart_items, created_at`

// PostgresPurchaseRepository implements domain.PurchaseRepository on database/sql
type PostgresPurchaseRepository struct {
	db    *sql.DB
	items codec.LineItemCodec
}

// NewPostgresPurchaseRepository creates a new PostgreSQL purchase repository
func NewPostgresPurchaseRepository(db *sql.DB, items codec.LineItemCodec) *PostgresPurchaseRepository {
	if items == nil {
		items = codec.JSONCodec{}
	}
	return &PostgresPurchaseRepository{db: db, items: items}
}

// Save inserts the purchase in a single statement
func (r *PostgresPurchaseRepository) Save(ctx context.Context, purchase *domain.Purchase) error {
	cartItems, err := r.items.Encode(purchase.LineItems)
	if err != nil {
		return &domain.StoreError{Op: "save", ID: purchase.ID, Err: err}
	}

	query := `
		INSERT INTO purchases (` + purchaseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	_, err = r.db.ExecContext(ctx, query,
		purchase.ID,
		purchase.FirstName,
		purchase.LastName,
		purchase.TaxID,
		purchase.Country,
		purchase.PostalCode,
		purchase.Street,
		purchase.Number,
		purchase.Complement,
		purchase.District,
		purchase.City,
		purchase.Region,
		purchase.Phone,
		purchase.Email,
		purchase.Note,
		purchase.Delivery,
		purchase.Payment,
		purchase.Total,
		cartItems,
		purchase.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			err = errors.Join(domain.ErrDuplicateID, err)
		}
		return &domain.StoreError{Op: "save", ID: purchase.ID, Err: err}
	}
	return nil
}

// FindByID retrieves a purchase by ID
func (r *PostgresPurchaseRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE id = $1`

	purchase, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPurchaseNotFound
		}
		return nil, &domain.StoreError{Op: "find", ID: id, Err: err}
	}
	return purchase, nil
}

// FindAll lists purchases, newest first
func (r *PostgresPurchaseRepository) FindAll(ctx context.Context, limit, offset int) ([]domain.Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, &domain.StoreError{Op: "list", Err: err}
	}
	defer rows.Close()

	purchases := []domain.Purchase{}
	for rows.Next() {
		purchase, err := r.scan(rows)
		if err != nil {
			return nil, &domain.StoreError{Op: "list", Err: fmt.Errorf("failed to scan purchase: %w", err)}
		}
		purchases = append(purchases, *purchase)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Op: "list", Err: err}
	}
	return purchases, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresPurchaseRepository) scan(row rowScanner) (*domain.Purchase, error) {
	var (
		p         domain.Purchase
		cartItems sql.NullString
	)
	err := row.Scan(
		&p.ID,
		&p.FirstName,
		&p.LastName,
		&p.TaxID,
		&p.Country,
		&p.PostalCode,
		&p.Street,
		&p.Number,
		&p.Complement,
		&p.District,
		&p.City,
		&p.Region,
		&p.Phone,
		&p.Email,
		&p.Note,
		&p.Delivery,
		&p.Payment,
		&p.Total,
		&cartItems,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.LineItems = r.items.Decode(cartItems.String)
	return &p, nil
}
