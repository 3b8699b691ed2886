package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CartItem struct {
	ID       string          `json:"id,omitempty"`
	Title    string          `json:"title,omitempty"`
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
}

type Order struct {
	ID        uuid.UUID
	Identity  string
	TotalGZM  decimal.Decimal
	Cart      []CartItem
	CreatedAt time.Time
}

// Checkout outcome returned to the storefront
type Receipt struct {
	Order     Order
	Remaining decimal.Decimal
	Replayed  bool
}
