package commerce

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Platform money fields carry exactly two fractional digits
const moneyPlaces = 2

// Price rule enum values used by this service
const (
	TargetLineItem       = "line_item"
	TargetSelectionAll   = "all"
	AllocationAcross     = "across"
	ValueTypeFixedAmount = "fixed_amount"
	CustomerSelectionAll = "all"
)

type PriceRule struct {
	ID                int64           `json:"id,omitempty"`
	Title             string          `json:"title"`
	TargetType        string          `json:"target_type"`
	TargetSelection   string          `json:"target_selection"`
	AllocationMethod  string          `json:"allocation_method"`
	ValueType         string          `json:"value_type"`
	Value             decimal.Decimal `json:"value"` // negative for discounts
	CustomerSelection string          `json:"customer_selection"`
	OncePerCustomer   bool            `json:"once_per_customer"`
	UsageLimit        *int            `json:"usage_limit,omitempty"`
	StartsAt          time.Time       `json:"starts_at"`
	EndsAt            *time.Time      `json:"ends_at,omitempty"`
}

// MarshalJSON sends value in platform money format, e.g. "-44.80"
func (r PriceRule) MarshalJSON() ([]byte, error) {
	type rule PriceRule
	return json.Marshal(struct {
		rule
		Value string `json:"value"`
	}{
		rule:  rule(r),
		Value: r.Value.StringFixed(moneyPlaces),
	})
}

type DiscountCode struct {
	ID          int64     `json:"id,omitempty"`
	PriceRuleID int64     `json:"price_rule_id,omitempty"`
	Code        string    `json:"code"`
	UsageCount  int       `json:"usage_count,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
}

type priceRuleEnvelope struct {
	PriceRule PriceRule `json:"price_rule"`
}

type discountCodeEnvelope struct {
	DiscountCode DiscountCode `json:"discount_code"`
}
