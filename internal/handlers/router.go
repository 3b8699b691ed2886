package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/gizmocoin/internal/handlers/middleware"
	"github.com/nkiryanov/gizmocoin/internal/handlers/render"
	"github.com/nkiryanov/gizmocoin/internal/logger"
	"github.com/nkiryanov/gizmocoin/internal/models"
	"github.com/nkiryanov/gizmocoin/internal/service/checkout"
	"github.com/nkiryanov/gizmocoin/internal/service/policy"
)

type Services struct {
	Wallet     walletService
	Checkout   checkoutService
	Redemption redemptionService
	Discounts  discountIssuer

	// Gate for operator-only routes that are not guarded by services themselves
	Operator policy.Authorizer
}

func NewRouter(s Services, logger logger.Logger) http.Handler {
	operator := s.Operator
	if operator == nil {
		operator = policy.DenyAll
	}

	r := chi.NewRouter()
	r.Use(
		chimw.RequestID,
		middleware.LoggerMiddleware(logger),
		chimw.Recoverer,
		middleware.Credential,
	)

	r.Get("/healthz", handleHealth())

	r.Route("/api", func(r chi.Router) {
		r.Get("/wallet/balance", handleBalance(s.Wallet, logger))
		r.Post("/wallet/adjust", handleAdjust(s.Wallet, logger))
		r.Post("/wallet/convert", handleConvert(s.Wallet, logger))
		r.Post("/wallet/redeem", handleRedeem(s.Redemption, logger))

		r.Post("/checkout", handleCheckout(s.Checkout, logger))
		r.Get("/orders", handleListOrders(s.Checkout, logger))
		r.Get("/orders/{id}", handleGetOrder(s.Checkout, logger))

		r.With(middleware.RequireOperator(operator)).Post("/discounts", handleIssueDiscount(s.Discounts, logger))
	})

	return r
}

type walletService interface {
	// Unknown identity has zero balance
	Balance(ctx context.Context, identity string) (models.Account, error)

	// Convert external currency amount at configured rate and credit the result
	Convert(ctx context.Context, identity string, external decimal.Decimal, key string) (models.Conversion, error)

	// Operator-only signed change. Has to return apperrors.ErrUnauthorized if caller is not operator
	Adjust(ctx context.Context, identity string, amount decimal.Decimal, key string) (models.Operation, error)
}

type checkoutService interface {
	Checkout(ctx context.Context, req checkout.Request) (models.Receipt, error)
	GetOrder(ctx context.Context, id uuid.UUID) (models.Order, error)
	ListOrders(ctx context.Context, identity string) ([]models.Order, error)
}

type redemptionService interface {
	Redeem(ctx context.Context, identity string, gzm decimal.Decimal) (models.Redemption, error)
}

type discountIssuer interface {
	Issue(ctx context.Context, value decimal.Decimal) (models.DiscountGrant, error)
}

func handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, map[string]string{"status": "ok"})
	}
}
