package redemption

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/gizmocoin/internal/apperrors"
	"github.com/nkiryanov/gizmocoin/internal/logger"
	"github.com/nkiryanov/gizmocoin/internal/models"
	"github.com/nkiryanov/gizmocoin/internal/service/discount"
	"github.com/nkiryanov/gizmocoin/internal/service/ledger"
	"github.com/nkiryanov/gizmocoin/internal/service/validate"
)

// Commerce platform keeps money with cents precision
const valuePrecision = 2

type Ledger interface {
	Rate() decimal.Decimal
	Apply(ctx context.Context, op models.Operation, hook ledger.Hook) (models.Operation, error)
}

type Issuer interface {
	Issue(ctx context.Context, value decimal.Decimal) (models.DiscountGrant, error)
}

// Service exchanges GZM for one-time discount codes.
//
// The debit is committed before the platform is called, so the same balance can't fund two codes.
// If the code is not issued, the debited amount is credited back.
type Service struct {
	ledger Ledger
	issuer Issuer
	logger logger.Logger
}

func NewService(l Ledger, issuer Issuer, log logger.Logger) (*Service, error) {
	if l == nil || issuer == nil {
		return nil, errors.New("ledger and issuer must not be nil")
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &Service{
		ledger: l,
		issuer: issuer,
		logger: log,
	}, nil
}

// Value of gzm in external currency at ledger rate, rounded to cents
func (s *Service) Value(gzm decimal.Decimal) decimal.Decimal {
	return gzm.Mul(s.ledger.Rate()).Round(valuePrecision)
}

// Redeem debits gzm and returns discount code worth it in external currency
func (s *Service) Redeem(ctx context.Context, identity string, gzm decimal.Decimal) (models.Redemption, error) {
	if err := validate.Identity(identity); err != nil {
		return models.Redemption{}, err
	}
	if err := validate.Positive(gzm, models.GZMPrecision); err != nil {
		return models.Redemption{}, err
	}

	value := s.Value(gzm)
	if !value.IsPositive() {
		return models.Redemption{}, fmt.Errorf("%w: %s GZM is worth less than 0.01", apperrors.ErrInvalidInput, gzm)
	}

	debit, err := s.ledger.Apply(ctx, models.Operation{
		Identity: identity,
		Reason:   models.OperationRedeem,
		Amount:   gzm.Neg(),
	}, nil)
	if err != nil {
		return models.Redemption{}, err
	}

	grant, err := s.issuer.Issue(ctx, value)
	if err != nil {
		return models.Redemption{}, s.refund(ctx, identity, gzm, err)
	}

	s.logger.Info("GZM redeemed", "identity", identity, "spent", gzm, "value", grant.Value, "price_rule_id", grant.PriceRuleID, "balance", debit.BalanceAfter)

	return models.Redemption{
		Grant:   grant,
		Spent:   gzm,
		Balance: debit.BalanceAfter,
	}, nil
}

// Give back debited amount after failed issue. Returns issue error, joined with refund error if any
func (s *Service) refund(ctx context.Context, identity string, gzm decimal.Decimal, issueErr error) error {
	// Refund must be attempted even when request context is gone
	ctx = context.WithoutCancel(ctx)

	_, err := s.ledger.Apply(ctx, models.Operation{
		Identity: identity,
		Reason:   models.OperationRefund,
		Amount:   gzm,
	}, nil)

	args := []any{"identity", identity, "amount", gzm}
	var orphan *discount.OrphanError
	if errors.As(issueErr, &orphan) {
		args = append(args, "price_rule_id", orphan.PriceRuleID, "title", orphan.Title, "ends_at", orphan.EndsAt)
	}

	if err != nil {
		s.logger.Error("Redemption refund failed, manual repair required", append(args, "issue_error", issueErr, "error", err)...)
		return errors.Join(issueErr, fmt.Errorf("refund %s GZM: %w", gzm, err))
	}

	// Code may have been applied by the platform even though the call failed
	if orphan != nil {
		s.logger.Error("Redemption refunded while price rule exists, reconcile platform code", append(args, "error", issueErr)...)
		return issueErr
	}

	s.logger.Warn("Redemption refunded", append(args, "error", issueErr)...)
	return issueErr
}
