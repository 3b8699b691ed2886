package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/gizmocoin/internal/apperrors"
	"github.com/nkiryanov/gizmocoin/internal/logger"
	"github.com/nkiryanov/gizmocoin/internal/models"
	"github.com/nkiryanov/gizmocoin/internal/repository"
	"github.com/nkiryanov/gizmocoin/internal/service/policy"
	"github.com/nkiryanov/gizmocoin/internal/service/validate"
)

var (
	// External currency units per one GZM
	DefaultRate = decimal.NewFromInt(25)

	// Largest manual adjustment operator may apply at once
	DefaultMaxAdjustment = decimal.NewFromInt(1000)

	// Largest single amount the balance column can hold with headroom
	maxAmount = decimal.New(1, 13)
)

type Config struct {
	// Conversion rate, external units per GZM. Default is used if zero
	Rate decimal.Decimal

	// Cap on absolute value of manual adjustment. Default is used if zero
	MaxAdjustment decimal.Decimal

	// Gate for manual adjustments. Denies everything if not set
	Authorizer policy.Authorizer
}

// Hook runs inside the mutation transaction after the balance is changed.
// Returning error rolls back the whole operation
type Hook func(ctx context.Context, storage repository.Storage, op *models.Operation) error

type Service struct {
	rate          decimal.Decimal
	maxAdjustment decimal.Decimal
	authorizer    policy.Authorizer

	storage repository.Storage
	logger  logger.Logger
}

func NewService(cfg Config, storage repository.Storage, l logger.Logger) (*Service, error) {
	if storage == nil {
		return nil, errors.New("storage must not be nil")
	}

	if cfg.Rate.IsZero() {
		cfg.Rate = DefaultRate
	}
	if cfg.MaxAdjustment.IsZero() {
		cfg.MaxAdjustment = DefaultMaxAdjustment
	}
	if cfg.Authorizer == nil {
		cfg.Authorizer = policy.DenyAll
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	if !cfg.Rate.IsPositive() {
		return nil, fmt.Errorf("rate must be positive, got %s", cfg.Rate)
	}
	if !cfg.MaxAdjustment.IsPositive() {
		return nil, fmt.Errorf("max adjustment must be positive, got %s", cfg.MaxAdjustment)
	}

	return &Service{
		rate:          cfg.Rate,
		maxAdjustment: cfg.MaxAdjustment,
		authorizer:    cfg.Authorizer,
		storage:       storage,
		logger:        l,
	}, nil
}

// Configured conversion rate
func (s *Service) Rate() decimal.Decimal {
	return s.rate
}

// Current account state. Unknown identity gets zero balance account
func (s *Service) Balance(ctx context.Context, identity string) (models.Account, error) {
	if err := validate.Identity(identity); err != nil {
		return models.Account{}, err
	}

	return s.storage.Account().GetAccount(ctx, identity)
}

func (s *Service) Credit(ctx context.Context, identity string, amount decimal.Decimal, key string) (models.Operation, error) {
	if err := validateAmount(amount); err != nil {
		return models.Operation{}, err
	}

	return s.Apply(ctx, models.Operation{
		IdempotencyKey: key,
		Identity:       identity,
		Reason:         models.OperationCredit,
		Amount:         amount,
	}, nil)
}

// Debit fails with apperrors.ErrBalanceInsufficient if balance is lower than amount
func (s *Service) Debit(ctx context.Context, identity string, amount decimal.Decimal, key string) (models.Operation, error) {
	if err := validateAmount(amount); err != nil {
		return models.Operation{}, err
	}

	return s.Apply(ctx, models.Operation{
		IdempotencyKey: key,
		Identity:       identity,
		Reason:         models.OperationDebit,
		Amount:         amount.Neg(),
	}, nil)
}

// Convert external currency amount at the configured rate and credit the result
func (s *Service) Convert(ctx context.Context, identity string, external decimal.Decimal, key string) (models.Conversion, error) {
	return s.ConvertAt(ctx, identity, external, s.rate, key)
}

func (s *Service) ConvertAt(ctx context.Context, identity string, external decimal.Decimal, rate decimal.Decimal, key string) (models.Conversion, error) {
	gzm, err := ToGZM(external, rate)
	if err != nil {
		return models.Conversion{}, err
	}

	op, err := s.Apply(ctx, models.Operation{
		IdempotencyKey: key,
		Identity:       identity,
		Reason:         models.OperationConvert,
		Amount:         gzm,
	}, nil)
	if err != nil {
		return models.Conversion{}, err
	}

	return models.Conversion{
		External: external,
		Rate:     rate,
		Granted:  op.Amount,
		Balance:  op.BalanceAfter,
		Replayed: op.Replayed,
	}, nil
}

// Adjust applies manual signed change requested by operator
// Caller has to pass policy gate, and absolute amount must not exceed configured cap
func (s *Service) Adjust(ctx context.Context, identity string, amount decimal.Decimal, key string) (models.Operation, error) {
	if err := s.authorizer.Authorize(ctx); err != nil {
		s.logger.Warn("Manual adjustment denied", "identity", identity, "error", err)
		return models.Operation{}, fmt.Errorf("adjustment denied: %w", err)
	}

	if amount.IsZero() {
		return models.Operation{}, fmt.Errorf("%w: adjustment amount must not be zero", apperrors.ErrInvalidInput)
	}
	if err := validate.Precision(amount, models.GZMPrecision); err != nil {
		return models.Operation{}, err
	}
	if amount.Abs().GreaterThan(s.maxAdjustment) {
		return models.Operation{}, fmt.Errorf("%w: |%s| exceeds max adjustment %s", apperrors.ErrOutOfRange, amount, s.maxAdjustment)
	}

	reason := models.OperationCredit
	if amount.IsNegative() {
		reason = models.OperationDebit
	}

	op, err := s.Apply(ctx, models.Operation{
		IdempotencyKey: key,
		Identity:       identity,
		Reason:         reason,
		Amount:         amount,
	}, nil)
	if err != nil {
		return op, err
	}

	s.logger.Info("Manual adjustment applied", "identity", identity, "amount", amount, "balance", op.BalanceAfter, "replayed", op.Replayed)
	return op, nil
}

// Convert external amount to GZM: external / rate rounded half away from zero to GZM precision
// Amount too small to give at least one GZM unit is rejected
func ToGZM(external decimal.Decimal, rate decimal.Decimal) (decimal.Decimal, error) {
	if !external.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: external amount must be greater than zero", apperrors.ErrInvalidInput)
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: rate must be greater than zero", apperrors.ErrInvalidInput)
	}

	gzm := external.DivRound(rate, models.GZMPrecision)
	if !gzm.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s converts to less than smallest GZM unit", apperrors.ErrInvalidInput, external)
	}
	if gzm.GreaterThan(maxAmount) {
		return decimal.Zero, fmt.Errorf("%w: converted amount is too large", apperrors.ErrInvalidInput)
	}

	return gzm, nil
}

func validateAmount(amount decimal.Decimal) error {
	if err := validate.Positive(amount, models.GZMPrecision); err != nil {
		return err
	}
	if amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: amount is too large", apperrors.ErrInvalidInput)
	}
	return nil
}
