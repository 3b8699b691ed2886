package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/gizmocoin/internal/apperrors"
	"github.com/nkiryanov/gizmocoin/internal/logger"
	"github.com/nkiryanov/gizmocoin/internal/models"
	"github.com/nkiryanov/gizmocoin/internal/repository"
	"github.com/nkiryanov/gizmocoin/internal/service/ledger"
	"github.com/nkiryanov/gizmocoin/internal/service/validate"
)

// Max number of line items in one cart
const MaxCartItems = 100

type Ledger interface {
	Rate() decimal.Decimal
	Apply(ctx context.Context, op models.Operation, hook ledger.Hook) (models.Operation, error)
}

type Request struct {
	Identity string

	// Order total in GZM. If nil, it is derived from the cart
	Total *decimal.Decimal

	// Line items priced in external currency, echoed back in the receipt
	Cart []models.CartItem

	IdempotencyKey string
}

type Service struct {
	ledger  Ledger
	storage repository.Storage
	logger  logger.Logger
}

func NewService(ledger Ledger, storage repository.Storage, l logger.Logger) (*Service, error) {
	if ledger == nil || storage == nil {
		return nil, errors.New("ledger and storage must not be nil")
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Service{
		ledger:  ledger,
		storage: storage,
		logger:  l,
	}, nil
}

// Checkout debits order total and records the order in one transaction
// On insufficient balance nothing is written and no order id is issued
func (s *Service) Checkout(ctx context.Context, req Request) (models.Receipt, error) {
	if err := validate.Identity(req.Identity); err != nil {
		return models.Receipt{}, err
	}
	if err := validateCart(req.Cart); err != nil {
		return models.Receipt{}, err
	}

	total, err := s.total(req)
	if err != nil {
		return models.Receipt{}, err
	}

	var order models.Order
	createOrder := func(ctx context.Context, tx repository.Storage, op *models.Operation) error {
		created, err := tx.Order().CreateOrder(ctx, models.Order{
			Identity: req.Identity,
			TotalGZM: total,
			Cart:     req.Cart,
		})
		if err != nil {
			return err
		}

		order = created
		op.OrderID = &created.ID
		return nil
	}

	op, err := s.ledger.Apply(ctx, models.Operation{
		IdempotencyKey: req.IdempotencyKey,
		Identity:       req.Identity,
		Reason:         models.OperationCheckout,
		Amount:         total.Neg(),
	}, createOrder)
	if err != nil {
		return models.Receipt{}, err
	}

	if op.Replayed {
		if op.OrderID == nil {
			return models.Receipt{}, fmt.Errorf("%w: replayed checkout has no order", apperrors.ErrStorage)
		}
		order, err = s.storage.Order().GetOrder(ctx, *op.OrderID)
		if err != nil {
			return models.Receipt{}, err
		}
	}

	s.logger.Info("Checkout completed", "identity", req.Identity, "order_id", order.ID, "total", total, "remaining", op.BalanceAfter, "replayed", op.Replayed)

	return models.Receipt{
		Order:     order,
		Remaining: op.BalanceAfter,
		Replayed:  op.Replayed,
	}, nil
}

func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (models.Order, error) {
	if id == uuid.Nil {
		return models.Order{}, fmt.Errorf("%w: order id is empty", apperrors.ErrInvalidInput)
	}
	return s.storage.Order().GetOrder(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context, identity string) ([]models.Order, error) {
	if err := validate.Identity(identity); err != nil {
		return nil, err
	}
	return s.storage.Order().ListOrders(ctx, identity)
}

func (s *Service) total(req Request) (decimal.Decimal, error) {
	if req.Total != nil {
		if err := validate.Positive(*req.Total, models.GZMPrecision); err != nil {
			return decimal.Zero, fmt.Errorf("total: %w", err)
		}
		return *req.Total, nil
	}

	if len(req.Cart) == 0 {
		return decimal.Zero, fmt.Errorf("%w: either total or cart is required", apperrors.ErrInvalidInput)
	}

	return CartTotal(req.Cart, s.ledger.Rate())
}

// CartTotal sums price*quantity over line items and converts the sum to GZM
func CartTotal(cart []models.CartItem, rate decimal.Decimal) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, item := range cart {
		sum = sum.Add(item.Price.Mul(decimal.NewFromInt(item.Quantity)))
	}

	gzm, err := ledger.ToGZM(sum, rate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("cart total: %w", err)
	}
	return gzm, nil
}

func validateCart(cart []models.CartItem) error {
	if len(cart) > MaxCartItems {
		return fmt.Errorf("%w: cart has more than %d items", apperrors.ErrInvalidInput, MaxCartItems)
	}

	for i, item := range cart {
		switch {
		case item.Price.IsNegative():
			return fmt.Errorf("%w: cart item %d has negative price", apperrors.ErrInvalidInput, i)
		case item.Quantity < 1:
			return fmt.Errorf("%w: cart item %d quantity must be at least 1", apperrors.ErrInvalidInput, i)
		}
		if err := validate.Precision(item.Price, models.GZMPrecision); err != nil {
			return fmt.Errorf("cart item %d: %w", i, err)
		}
	}

	return nil
}
