package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/gizmocoin/internal/models"
)

type OperationRepo struct {
	DB DBTX
}

// Unique index insert waits for concurrent transaction with the same identity and key
// So the key is either reserved by us or belongs to a committed operation
const claimOperation = `-- name: ClaimOperation
INSERT INTO operations (idempotency_key, identity, reason, amount)
VALUES ($1, $2, $3, $4)
ON CONFLICT (identity, idempotency_key) DO NOTHING
RETURNING idempotency_key
`

const getOperation = `-- name: GetOperation
SELECT idempotency_key, identity, reason, amount, balance_after, order_id, created_at
FROM operations
WHERE identity = $1 AND idempotency_key = $2
`

func (r *OperationRepo) Claim(ctx context.Context, op models.Operation) (bool, models.Operation, error) {
	rows, _ := r.DB.Query(ctx, claimOperation, op.IdempotencyKey, op.Identity, op.Reason, op.Amount)
	_, err := pgx.CollectOneRow(rows, pgx.RowTo[string])

	switch {
	case err == nil:
		return true, models.Operation{}, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return false, models.Operation{}, dbError("claim operation", err)
	}

	rows, _ = r.DB.Query(ctx, getOperation, op.Identity, op.IdempotencyKey)
	existing, err := pgx.CollectOneRow(rows, rowToOperation)
	if err != nil {
		return false, existing, dbError("get operation", err)
	}

	return false, existing, nil
}

const completeOperation = `-- name: CompleteOperation
UPDATE operations
SET balance_after = $3, order_id = $4
WHERE identity = $1 AND idempotency_key = $2
`

func (r *OperationRepo) Complete(ctx context.Context, op models.Operation) error {
	tag, err := r.DB.Exec(ctx, completeOperation, op.Identity, op.IdempotencyKey, op.BalanceAfter, op.OrderID)
	if err != nil {
		return dbError("complete operation", err)
	}
	if tag.RowsAffected() == 0 {
		return dbError("complete operation", errors.New("operation was not claimed"))
	}

	return nil
}

func rowToOperation(row pgx.CollectableRow) (models.Operation, error) {
	var (
		op           models.Operation
		balanceAfter decimal.NullDecimal
		orderID      *uuid.UUID
	)

	err := row.Scan(&op.IdempotencyKey, &op.Identity, &op.Reason, &op.Amount, &balanceAfter, &orderID, &op.CreatedAt)
	op.BalanceAfter = balanceAfter.Decimal
	op.OrderID = orderID

	return op, err
}
