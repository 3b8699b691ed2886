package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Number of fractional digits GZM amounts are stored with
const GZMPrecision = 6

// Largest balance the NUMERIC(20, 6) column holds
var MaxBalance = decimal.RequireFromString("99999999999999.999999")

const (
	OperationCredit   = "credit"
	OperationDebit    = "debit"
	OperationConvert  = "convert"
	OperationCheckout = "checkout"
	OperationRedeem   = "redeem"
	OperationRefund   = "refund"
)

type Account struct {
	Identity  string
	Balance   decimal.Decimal
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Operation is a single signed change of one account balance.
// It is persisted only when IdempotencyKey is set, so a retried request can be answered with the first outcome.
type Operation struct {
	IdempotencyKey string
	Identity       string
	Reason         string
	Amount         decimal.Decimal // signed: positive credits, negative debits
	BalanceAfter   decimal.Decimal
	OrderID        *uuid.UUID // set for checkout operations only
	CreatedAt      time.Time

	// Operation was not applied now, the stored outcome of the earlier request is returned
	Replayed bool
}

// Same reports whether o describes the same request as other (ignoring outcome fields)
func (o Operation) Same(other Operation) bool {
	return o.Identity == other.Identity && o.Reason == other.Reason && o.Amount.Equal(other.Amount)
}

type Conversion struct {
	External decimal.Decimal
	Rate     decimal.Decimal
	Granted  decimal.Decimal
	Balance  decimal.Decimal
	Replayed bool
}
