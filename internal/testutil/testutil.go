package testutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/nkiryanov/gizmocoin/internal/db"
)

const postgresImage = "postgres:17-alpine"

// Return random free port on 127.0.0.1 address
func RandomPort() (int, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:")
	if err != nil {
		return 0, err
	}
	defer ln.Close() // nolint:errcheck

	addr := ln.Addr().(*net.TCPAddr)
	return addr.Port, nil
}

// Migrated wallet database running in a container
type Postgres struct {
	DSN  string
	Pool *pgxpool.Pool
}

// StartPostgres runs migrated postgres for the test and removes it when the test ends.
// Test is skipped if docker is not available
func StartPostgres(t *testing.T) *Postgres {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	container, err := postgres.Run(t.Context(),
		postgresImage,
		postgres.WithDatabase("gizmocoin-test"),
		postgres.WithUsername("gizmocoin"),
		postgres.WithPassword("pwd"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(t.Context(), "sslmode=disable")
	require.NoError(t, err, "failed to get postgres connection string")

	pool, err := db.ConnectAndMigrate(t.Context(), dsn)
	require.NoError(t, err, "failed to connect and migrate wallet schema")
	t.Cleanup(pool.Close)

	return &Postgres{DSN: dsn, Pool: pool}
}

// Balance committed for identity, zero if account does not exist
func (p *Postgres) Balance(t *testing.T, identity string) string {
	t.Helper()

	var balance string
	err := p.Pool.QueryRow(t.Context(), "SELECT balance::text FROM accounts WHERE identity = $1", identity).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return "0"
	}
	require.NoError(t, err)
	return balance
}

type dbtx interface {
	Begin(context.Context) (pgx.Tx, error)
}

// Create db transaction and rollback at test end
// So you may be sure db remains unchanged when test stops
func WithTx(dbtx dbtx, t *testing.T, testFunc func(tx pgx.Tx)) {
	tx, err := dbtx.Begin(t.Context())
	require.NoError(t, err)

	defer func() {
		err := tx.Rollback(t.Context())
		require.NoError(t, err)
	}()

	testFunc(tx)
}

// Concurrently runs n calls of fn released at the same moment and returns their errors by call index
func Concurrently(n int, fn func(i int) error) []error {
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, n)
	)

	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			errs[i] = fn(i)
		}()
	}

	close(start)
	wg.Wait()
	return errs
}

// Count errors matching target. Nil target counts successes
func Count(errs []error, target error) int {
	n := 0
	for _, err := range errs {
		if (target == nil && err == nil) || (target != nil && errors.Is(err, target)) {
			n++
		}
	}
	return n
}

// Identity unique across test run
// Use it in tests that commit to a shared database
func Identity(t *testing.T) string {
	return fmt.Sprintf("%s-%s@example.com", t.Name(), uuid.NewString()[:8])
}
