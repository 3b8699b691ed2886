package ledger

import (
	"context"
	"fmt"

	"github.com/nkiryanov/gizmocoin/internal/apperrors"
	"github.com/nkiryanov/gizmocoin/internal/models"
	"github.com/nkiryanov/gizmocoin/internal/repository"
	"github.com/nkiryanov/gizmocoin/internal/service/validate"
)

// Apply is the only path that changes a balance.
//
// Operation is validated before storage is touched. Then in one transaction:
// the idempotency key is claimed (if set), the signed amount is applied, hook runs
// and the outcome is stored for the key. Any error rolls everything back.
//
// If the key belongs to an already completed operation with the same parameters,
// stored outcome is returned with Replayed set and nothing is changed.
// Same key with different parameters fails with apperrors.ErrIdempotencyKeyReused.
func (s *Service) Apply(ctx context.Context, op models.Operation, hook Hook) (models.Operation, error) {
	if err := validateOperation(op); err != nil {
		return models.Operation{}, err
	}

	var result models.Operation

	err := s.storage.InTx(ctx, func(tx repository.Storage) error {
		result = op

		if op.IdempotencyKey != "" {
			claimed, existing, err := tx.Operation().Claim(ctx, op)
			if err != nil {
				return err
			}
			if !claimed {
				if !existing.Same(op) {
					return fmt.Errorf("%w: key %q", apperrors.ErrIdempotencyKeyReused, op.IdempotencyKey)
				}
				existing.Replayed = true
				result = existing
				return nil
			}
		}

		account, err := tx.Account().ApplyDelta(ctx, op.Identity, op.Amount)
		if err != nil {
			return err
		}
		result.BalanceAfter = account.Balance

		if hook != nil {
			if err := hook(ctx, tx, &result); err != nil {
				return err
			}
		}

		if op.IdempotencyKey != "" {
			return tx.Operation().Complete(ctx, result)
		}
		return nil
	})
	if err != nil {
		s.logger.Debug("Ledger operation failed", "identity", op.Identity, "reason", op.Reason, "amount", op.Amount, "error", err)
		return models.Operation{}, err
	}

	s.logger.Debug("Ledger operation applied",
		"identity", result.Identity,
		"reason", result.Reason,
		"amount", result.Amount,
		"balance", result.BalanceAfter,
		"replayed", result.Replayed,
	)

	return result, nil
}

func validateOperation(op models.Operation) error {
	if err := validate.Identity(op.Identity); err != nil {
		return err
	}
	if err := validate.IdempotencyKey(op.IdempotencyKey); err != nil {
		return err
	}

	switch op.Reason {
	case models.OperationCredit, models.OperationConvert, models.OperationRefund:
		if !op.Amount.IsPositive() {
			return fmt.Errorf("%w: %s amount must be positive", apperrors.ErrInvalidInput, op.Reason)
		}
	case models.OperationDebit, models.OperationCheckout, models.OperationRedeem:
		if !op.Amount.IsNegative() {
			return fmt.Errorf("%w: %s amount must be negative", apperrors.ErrInvalidInput, op.Reason)
		}
	default:
		return fmt.Errorf("%w: unknown operation reason %q", apperrors.ErrInvalidInput, op.Reason)
	}

	return validate.Precision(op.Amount, models.GZMPrecision)
}
