package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DiscountGrant is a one-time code registered in the commerce platform.
// The platform is the system of record for its redemption state.
type DiscountGrant struct {
	Code        string
	PriceRuleID int64
	Value       decimal.Decimal
	StartsAt    time.Time
	ExpiresAt   time.Time
}

type Redemption struct {
	Grant   DiscountGrant
	Spent   decimal.Decimal
	Balance decimal.Decimal
}
