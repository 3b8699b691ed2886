package discount

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/gizmocoin/internal/apperrors"
	"github.com/nkiryanov/gizmocoin/internal/logger"
	"github.com/nkiryanov/gizmocoin/internal/models"
	"github.com/nkiryanov/gizmocoin/internal/service/commerce"
)

const (
	DefaultTTL = 10 * time.Minute
	MinTTL     = time.Minute
	MaxTTL     = 24 * time.Hour

	// Attempts to attach a code when the platform reports it as taken
	DefaultCodeAttempts = 3

	// Commerce platform keeps money with cents precision
	valuePrecision = 2
)

// OrphanError is returned when price rule exists in the platform but its code is not confirmed.
// The code may still be live if the attach call failed after the platform applied it
type OrphanError struct {
	PriceRuleID int64
	Title       string
	EndsAt      time.Time
	Err         error
}

func (e *OrphanError) Error() string {
	return fmt.Sprintf("price rule %d created but code not attached: %v", e.PriceRuleID, e.Err)
}

func (e *OrphanError) Unwrap() error {
	return e.Err
}

type Platform interface {
	CreatePriceRule(ctx context.Context, rule commerce.PriceRule) (commerce.PriceRule, error)
	CreateDiscountCode(ctx context.Context, priceRuleID int64, code string) (commerce.DiscountCode, error)
}

type Config struct {
	// How long issued code stays valid. Default is used if zero
	TTL time.Duration

	// Random symbols after prefix. Default is used if zero
	CodeLength int

	// Default is used if zero
	CodeAttempts int

	// Clock, time.Now is used if nil
	Now func() time.Time
}

// Bridge mints one-time fixed amount discount codes in the commerce platform.
//
// Issuing is two remote calls without compensation: create price rule, then attach code to it.
// If the second call fails the rule stays in the platform unused. Such rule is logged
// at error level with its id for manual cleanup and the grant fails.
type Bridge struct {
	ttl          time.Duration
	codeLength   int
	codeAttempts int
	now          func() time.Time

	platform Platform
	logger   logger.Logger
}

func NewBridge(cfg Config, platform Platform, l logger.Logger) (*Bridge, error) {
	if platform == nil {
		return nil, errors.New("platform must not be nil")
	}

	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.CodeLength == 0 {
		cfg.CodeLength = DefaultCodeLength
	}
	if cfg.CodeAttempts == 0 {
		cfg.CodeAttempts = DefaultCodeAttempts
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	switch {
	case cfg.TTL < MinTTL || cfg.TTL > MaxTTL:
		return nil, fmt.Errorf("discount ttl must be within [%s, %s], got %s", MinTTL, MaxTTL, cfg.TTL)
	case cfg.CodeLength < MinCodeLength || cfg.CodeLength > MaxCodeLength:
		return nil, fmt.Errorf("code length must be within [%d, %d], got %d", MinCodeLength, MaxCodeLength, cfg.CodeLength)
	case cfg.CodeAttempts < 1:
		return nil, fmt.Errorf("code attempts must be positive, got %d", cfg.CodeAttempts)
	}

	return &Bridge{
		ttl:          cfg.TTL,
		codeLength:   cfg.CodeLength,
		codeAttempts: cfg.CodeAttempts,
		now:          cfg.Now,
		platform:     platform,
		logger:       l,
	}, nil
}

// Issue registers one-time code worth value in external currency
// Value is rounded to cents and must stay positive, otherwise nothing is sent to the platform
func (b *Bridge) Issue(ctx context.Context, value decimal.Decimal) (models.DiscountGrant, error) {
	value = value.Round(valuePrecision)
	if !value.IsPositive() {
		return models.DiscountGrant{}, fmt.Errorf("%w: discount value must be at least 0.01", apperrors.ErrInvalidInput)
	}

	code, err := NewCode(b.codeLength)
	if err != nil {
		return models.DiscountGrant{}, err
	}

	startsAt := b.now().UTC().Truncate(time.Second)
	endsAt := startsAt.Add(b.ttl)
	usageLimit := 1

	rule, err := b.platform.CreatePriceRule(ctx, commerce.PriceRule{
		Title:             code,
		TargetType:        commerce.TargetLineItem,
		TargetSelection:   commerce.TargetSelectionAll,
		AllocationMethod:  commerce.AllocationAcross,
		ValueType:         commerce.ValueTypeFixedAmount,
		Value:             value.Neg(),
		CustomerSelection: commerce.CustomerSelectionAll,
		OncePerCustomer:   true,
		UsageLimit:        &usageLimit,
		StartsAt:          startsAt,
		EndsAt:            &endsAt,
	})
	if err != nil {
		return models.DiscountGrant{}, fmt.Errorf("%w: create price rule: %w", apperrors.ErrExternalService, err)
	}

	code, err = b.attachCode(ctx, rule.ID, code)
	if err != nil {
		b.logger.Error("Orphaned price rule, manual cleanup required",
			"price_rule_id", rule.ID,
			"title", rule.Title,
			"value", value,
			"starts_at", startsAt,
			"ends_at", endsAt,
			"error", err,
		)
		return models.DiscountGrant{}, fmt.Errorf("%w: %w", apperrors.ErrExternalService, &OrphanError{
			PriceRuleID: rule.ID,
			Title:       rule.Title,
			EndsAt:      endsAt,
			Err:         err,
		})
	}

	b.logger.Info("Discount code issued", "price_rule_id", rule.ID, "value", value, "expires_at", endsAt)

	return models.DiscountGrant{
		Code:        code,
		PriceRuleID: rule.ID,
		Value:       value,
		StartsAt:    startsAt,
		ExpiresAt:   endsAt,
	}, nil
}

// Attach code to rule. If code is taken, retry with fresh one
func (b *Bridge) attachCode(ctx context.Context, ruleID int64, code string) (string, error) {
	var err error

	for attempt := 1; ; attempt++ {
		_, err = b.platform.CreateDiscountCode(ctx, ruleID, code)
		if err == nil {
			return code, nil
		}

		var commerceErr *commerce.Error
		if !errors.As(err, &commerceErr) || !commerceErr.CodeTaken() || attempt >= b.codeAttempts {
			return "", err
		}

		b.logger.Warn("Discount code taken, retrying with new one", "price_rule_id", ruleID, "attempt", attempt)
		if code, err = NewCode(b.codeLength); err != nil {
			return "", err
		}
	}
}
