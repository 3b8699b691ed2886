package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/gizmocoin/internal/apperrors"
	"github.com/nkiryanov/gizmocoin/internal/models"
)

type AccountRepo struct {
	DB DBTX
}

// Create zero balance account if not exists
// If concurrent transaction inserts the same identity, waits until it ends
const ensureAccount = `-- name: EnsureAccount
INSERT INTO accounts (identity)
VALUES ($1)
ON CONFLICT (identity) DO NOTHING
`

const getAccount = `-- name: GetAccount
SELECT identity, balance, version, created_at, updated_at
FROM accounts
WHERE identity = $1
`

func (r *AccountRepo) GetAccount(ctx context.Context, identity string) (models.Account, error) {
	if _, err := r.DB.Exec(ctx, ensureAccount, identity); err != nil {
		return models.Account{}, dbError("ensure account", err)
	}

	rows, _ := r.DB.Query(ctx, getAccount, identity)
	account, err := pgx.CollectOneRow(rows, rowToAccount)
	if err != nil {
		return account, dbError("get account", err)
	}

	return account, nil
}

// Guarded read-modify-write in a single statement
// UPDATE locks the row, so concurrent writers on the same identity wait and re-check the predicate on the fresh balance
const applyDelta = `-- name: ApplyDelta
UPDATE accounts
SET balance = balance + $2, version = version + 1, updated_at = now()
WHERE identity = $1 AND balance + $2 >= 0 AND balance + $2 <= $3
RETURNING identity, balance, version, created_at, updated_at
`

func (r *AccountRepo) ApplyDelta(ctx context.Context, identity string, delta decimal.Decimal) (models.Account, error) {
	if _, err := r.DB.Exec(ctx, ensureAccount, identity); err != nil {
		return models.Account{}, dbError("ensure account", err)
	}

	rows, _ := r.DB.Query(ctx, applyDelta, identity, delta, models.MaxBalance)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, pgx.ErrNoRows) && delta.IsPositive():
		// Credit never makes balance negative, so only the upper bound could stop it
		return account, fmt.Errorf("%w: balance would exceed %s", apperrors.ErrOutOfRange, models.MaxBalance)
	case errors.Is(err, pgx.ErrNoRows):
		return account, apperrors.ErrBalanceInsufficient
	default:
		return account, dbError("apply delta", err)
	}
}

func rowToAccount(row pgx.CollectableRow) (models.Account, error) {
	var a models.Account
	err := row.Scan(&a.Identity, &a.Balance, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}
