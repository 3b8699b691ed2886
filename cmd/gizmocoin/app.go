package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nkiryanov/gizmocoin/internal/db"
	"github.com/nkiryanov/gizmocoin/internal/handlers"
	"github.com/nkiryanov/gizmocoin/internal/logger"
	"github.com/nkiryanov/gizmocoin/internal/repository/postgres"
	"github.com/nkiryanov/gizmocoin/internal/service/checkout"
	"github.com/nkiryanov/gizmocoin/internal/service/commerce"
	"github.com/nkiryanov/gizmocoin/internal/service/discount"
	"github.com/nkiryanov/gizmocoin/internal/service/ledger"
	"github.com/nkiryanov/gizmocoin/internal/service/policy"
	"github.com/nkiryanov/gizmocoin/internal/service/redemption"
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger logger.Logger
	pool   *pgxpool.Pool
}

func NewServerApp(ctx context.Context, c *Config) (*ServerApp, error) {
	// Initialize logger
	l, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	// Policy gate: operator may present passphrase or signed token
	passphrase, err := policy.NewPassphrase(c.OperatorPassphrase)
	if err != nil {
		return nil, fmt.Errorf("error while initializing passphrase gate: %w", err)
	}
	token, err := policy.NewToken(policy.TokenConfig{SecretKey: c.SecretKey})
	if err != nil {
		return nil, fmt.Errorf("error while initializing token gate: %w", err)
	}
	operator := policy.Any(passphrase, token)

	commerceClient, err := commerce.NewClient(commerce.Config{
		Store:      c.ShopifyStore,
		Token:      c.ShopifyToken,
		APIVersion: c.ShopifyAPIVersion,
		BaseURL:    c.ShopifyBaseURL,
		Timeout:    c.CommerceTimeout,
	}, l)
	if err != nil {
		return nil, fmt.Errorf("error while creating commerce client: %w", err)
	}
	bridge, err := discount.NewBridge(discount.Config{
		TTL:        c.DiscountTTL,
		CodeLength: c.DiscountCodeLength,
	}, commerceClient, l)
	if err != nil {
		return nil, fmt.Errorf("error while creating discount bridge: %w", err)
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}
	storage := postgres.NewStorage(pool)

	ledgerService, err := ledger.NewService(ledger.Config{
		Rate:          c.Rate,
		MaxAdjustment: c.MaxAdjustment,
		Authorizer:    operator,
	}, storage, l)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("error while creating ledger: %w", err)
	}
	checkoutService, err := checkout.NewService(ledgerService, storage, l)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("error while creating checkout: %w", err)
	}
	redemptionService, err := redemption.NewService(ledgerService, bridge, l)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("error while creating redemption: %w", err)
	}

	router := handlers.NewRouter(handlers.Services{
		Wallet:     ledgerService,
		Checkout:   checkoutService,
		Redemption: redemptionService,
		Discounts:  bridge,
		Operator:   operator,
	}, l)

	return &ServerApp{
		ListenAddr: c.ListenAddr,
		Handler:    router,
		logger:     l,
		pool:       pool,
	}, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.pool.Close()

	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed

	return err
}
