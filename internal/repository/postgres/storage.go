package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/gizmocoin/internal/apperrors"
	"github.com/nkiryanov/gizmocoin/internal/repository"
)

// Max retries of a top-level transaction failed with transient conflict
const maxTxRetries = 5

// Common interface of *pgxpool.Pool, *pgx.Conn and pgx.Tx
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Storage struct {
	db DBTX

	// db is a transaction already, so InTx opens savepoint and never retries
	nested bool
}

func NewStorage(db DBTX) repository.Storage {
	_, nested := db.(pgx.Tx)
	return &Storage{db: db, nested: nested}
}

func (s *Storage) Account() repository.AccountRepo {
	return &AccountRepo{DB: s.db}
}

func (s *Storage) Order() repository.OrderRepo {
	return &OrderRepo{DB: s.db}
}

func (s *Storage) Operation() repository.OperationRepo {
	return &OperationRepo{DB: s.db}
}

func (s *Storage) InTx(ctx context.Context, fn func(repository.Storage) error) error {
	if s.nested {
		return s.inTx(ctx, fn)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 10 * time.Millisecond
	policy.MaxInterval = 200 * time.Millisecond

	return backoff.Retry(
		func() error {
			err := s.inTx(ctx, fn)
			switch {
			case err == nil:
				return nil
			case isTransient(err):
				return err
			default:
				return backoff.Permanent(err)
			}
		},
		backoff.WithContext(backoff.WithMaxRetries(policy, maxTxRetries), ctx),
	)
}

func (s *Storage) inTx(ctx context.Context, fn func(repository.Storage) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return dbError("begin tx", err)
	}

	defer func() {
		switch err {
		case nil:
			if commitErr := tx.Commit(ctx); commitErr != nil {
				err = dbError("commit tx", commitErr)
			}
		default:
			// Rollback even if request context is already cancelled
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	err = fn(&Storage{db: tx, nested: true})

	return err
}

// Wrap driver error so callers may check it with errors.Is(err, apperrors.ErrStorage)
func dbError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", apperrors.ErrStorage, op, err)
}

// Conflicts resolved by running transaction again
func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	switch pgErr.Code {
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return true
	default:
		return false
	}
}
