package kafka

import "github.com/shopspring/decimal"

// PurchaseEvent is the purchase payload carried on the purchase topic. Field
// names follow the storefront producers; none of them is guaranteed non-empty.
type PurchaseEvent struct {
	FirstName  string          `json:"firstName"`
	LastName   string          `json:"lastName"`
	TaxID      string          `json:"cpf"`
	Country    string          `json:"country"`
	PostalCode string          `json:"cep"`
	Street     string          `json:"address"`
	Number     string          `json:"number"`
	Complement string          `json:"complement"`
	District   string          `json:"district"`
	City       string          `json:"city"`
	Region     string          `json:"state"`
	Phone      string          `json:"phone"`
	Email      string          `json:"email"`
	Note       string          `json:"note"`
	Delivery   string          `json:"delivery"`
	Payment    string          `json:"payment"`
	Total      decimal.Decimal `json:"valor"`
	CartItems  []CartItem      `json:"cartItems"`
}

// CartItem is one purchased book and how many copies were bought
type CartItem struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

// Event types
const (
	EventTypePurchaseCreated = "purchase.created"
)

// Kafka topics and consumer groups
const (
	TopicPurchase = "purchase-topic"
	GroupPurchase = "purchase-group"
)

// Message headers
const (
	HeaderEventType = "event_type"
	HeaderEventID   = "event_id"
)
