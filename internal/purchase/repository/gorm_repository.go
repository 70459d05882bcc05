package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tair/purchase-ingest/internal/purchase/codec"
	"github.com/tair/purchase-ingest/internal/purchase/domain"
)

// PurchaseRow is the persisted shape of a purchase
type PurchaseRow struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	FirstName  string          `gorm:"column:first_name"`
	LastName   string          `gorm:"column:last_name"`
	TaxID      string          `gorm:"column:cpf"`
	Country    string          `gorm:"column:country"`
	PostalCode string          `gorm:"column:cep"`
	Street     string          `gorm:"column:address"`
	Number     string          `gorm:"column:number"`
	Complement string          `gorm:"column:complement"`
	District   string          `gorm:"column:district"`
	City       string          `gorm:"column:city"`
	Region     string          `gorm:"column:state"`
	Phone      string          `gorm:"column:phone"`
	Email      string          `gorm:"column:email"`
	Note       string          `gorm:"column:note"`
	Delivery   string          `gorm:"column:delivery"`
	Payment    string          `gorm:"column:payment"`
	Total      decimal.Decimal `gorm:"column:valor;type:numeric"`
	CartItems  datatypes.JSON  `gorm:"column:cart_items;type:jsonb;not null"`
	CreatedAt  time.Time       `gorm:"column:created_at;not null;index"`
}

// TableName specifies the table name
func (PurchaseRow) TableName() string {
	return "purchases"
}

// GormPurchaseRepository implements domain.PurchaseRepository using GORM
type GormPurchaseRepository struct {
	db    *gorm.DB
	items codec.LineItemCodec
}

// NewGormPurchaseRepository creates a new GORM purchase repository
func NewGormPurchaseRepository(db *gorm.DB, items codec.LineItemCodec) *GormPurchaseRepository {
	if items == nil {
		items = codec.JSONCodec{}
	}
	return &GormPurchaseRepository{db: db, items: items}
}

// AutoMigrate creates the purchases table
func (r *GormPurchaseRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&PurchaseRow{})
}

// Save inserts the purchase in a single statement
func (r *GormPurchaseRepository) Save(ctx context.Context, purchase *domain.Purchase) error {
	row, err := toRow(purchase, r.items)
	if err != nil {
		return &domain.StoreError{Op: "save", ID: purchase.ID, Err: err}
	}

	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			err = errors.Join(domain.ErrDuplicateID, err)
		}
		return &domain.StoreError{Op: "save", ID: purchase.ID, Err: err}
	}
	return nil
}

// FindByID retrieves a purchase by ID
func (r *GormPurchaseRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Purchase, error) {
	var row PurchaseRow
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPurchaseNotFound
		}
		return nil, &domain.StoreError{Op: "find", ID: id, Err: err}
	}
	return fromRow(&row, r.items), nil
}

// FindAll lists purchases, newest first
func (r *GormPurchaseRepository) FindAll(ctx context.Context, limit, offset int) ([]domain.Purchase, error) {
	var rows []PurchaseRow
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, &domain.StoreError{Op: "list", Err: err}
	}

	purchases := make([]domain.Purchase, 0, len(rows))
	for i := range rows {
		purchases = append(purchases, *fromRow(&rows[i], r.items))
	}
	return purchases, nil
}

func toRow(p *domain.Purchase, items codec.LineItemCodec) (*PurchaseRow, error) {
	cartItems, err := items.Encode(p.LineItems)
	if err != nil {
		return nil, err
	}
	return &PurchaseRow{
		ID:         p.ID,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		TaxID:      p.TaxID,
		Country:    p.Country,
		PostalCode: p.PostalCode,
		Street:     p.Street,
		Number:     p.Number,
		Complement: p.Complement,
		District:   p.District,
		City:       p.City,
		Region:     p.Region,
		Phone:      p.Phone,
		Email:      p.Email,
		Note:       p.Note,
		Delivery:   p.Delivery,
		Payment:    p.Payment,
		Total:      p.Total,
		CartItems:  datatypes.JSON(cartItems),
		CreatedAt:  p.CreatedAt,
	}, nil
}

func fromRow(row *PurchaseRow, items codec.LineItemCodec) *domain.Purchase {
	return &domain.Purchase{
		ID:         row.ID,
		FirstName:  row.FirstName,
		LastName:   row.LastName,
		TaxID:      row.TaxID,
		Country:    row.Country,
		PostalCode: row.PostalCode,
		Street:     row.Street,
		Number:     row.Number,
		Complement: row.Complement,
		District:   row.District,
		City:       row.City,
		Region:     row.Region,
		Phone:      row.Phone,
		Email:      row.Email,
		Note:       row.Note,
		Delivery:   row.Delivery,
		Payment:    row.Payment,
		Total:      row.Total,
		LineItems:  items.Decode(string(row.CartItems)),
		CreatedAt:  row.CreatedAt,
	}
}
