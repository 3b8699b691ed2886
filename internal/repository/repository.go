package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/gizmocoin/internal/models"
)

// Account (balance store) repository interface
type AccountRepo interface {
	// Get account with its current balance
	// Account is created with zero balance if it does not exist yet
	GetAccount(ctx context.Context, identity string) (models.Account, error)

	// Atomically add signed delta to account balance and return updated account
	// Account is created with zero balance if it does not exist yet
	// If balance+delta < 0 must return apperrors.ErrBalanceInsufficient and leave balance unchanged
	// Concurrent calls for the same identity must be serialized, different identities must not block each other
	ApplyDelta(ctx context.Context, identity string, delta decimal.Decimal) (models.Account, error)
}

// Order repository interface
type OrderRepo interface {
	CreateOrder(ctx context.Context, order models.Order) (models.Order, error)

	// Has to return apperrors.ErrOrderNotFound if order not exists
	GetOrder(ctx context.Context, id uuid.UUID) (models.Order, error)

	// List identity orders, newest first
	ListOrders(ctx context.Context, identity string) ([]models.Order, error)
}

// Operation repository interface. Keeps outcomes of requests sent with idempotency key
type OperationRepo interface {
	// Claim idempotency key for the operation
	// If key is free it is reserved for the caller transaction and 'claimed' is true
	// If key is taken the stored operation is returned and 'claimed' is false
	// If another transaction holds the key, the call waits until that transaction ends
	Claim(ctx context.Context, op models.Operation) (claimed bool, existing models.Operation, err error)

	// Store the operation outcome (balance after, order id) for the claimed key
	Complete(ctx context.Context, op models.Operation) error
}

type Storage interface {
	Account() AccountRepo
	Order() OrderRepo
	Operation() OperationRepo

	// Run fn in transaction. Commit if fn returns nil, otherwise rollback
	// Transient conflicts (serialization failure, deadlock) are retried transparently
	InTx(ctx context.Context, fn func(Storage) error) error
}
