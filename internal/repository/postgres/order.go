package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/gizmocoin/internal/apperrors"
	"github.com/nkiryanov/gizmocoin/internal/models"
)

type OrderRepo struct {
	DB DBTX
}

const createOrder = `-- name: CreateOrder
INSERT INTO orders (id, identity, total_gzm, cart, created_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, identity, total_gzm, cart, created_at
`

// Create order. Zero ID and CreatedAt are filled with defaults
func (r *OrderRepo) CreateOrder(ctx context.Context, order models.Order) (models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	if order.Cart == nil {
		order.Cart = []models.CartItem{}
	}

	rows, _ := r.DB.Query(ctx, createOrder, order.ID, order.Identity, order.TotalGZM, order.Cart, order.CreatedAt)
	o, err := pgx.CollectOneRow(rows, rowToOrder)
	if err != nil {
		return o, dbError("create order", err)
	}

	return o, nil
}

const getOrder = `-- name: GetOrder
SELECT id, identity, total_gzm, cart, created_at
FROM orders
WHERE id = $1
`

func (r *OrderRepo) GetOrder(ctx context.Context, id uuid.UUID) (models.Order, error) {
	rows, _ := r.DB.Query(ctx, getOrder, id)
	o, err := pgx.CollectOneRow(rows, rowToOrder)

	switch {
	case err == nil:
		return o, nil
	case errors.Is(err, pgx.ErrNoRows):
		return o, apperrors.ErrOrderNotFound
	default:
		return o, dbError("get order", err)
	}
}

const listOrders = `-- name: ListOrders
SELECT id, identity, total_gzm, cart, created_at
FROM orders
WHERE identity = $1
ORDER BY created_at DESC
`

func (r *OrderRepo) ListOrders(ctx context.Context, identity string) ([]models.Order, error) {
	rows, _ := r.DB.Query(ctx, listOrders, identity)
	orders, err := pgx.CollectRows(rows, rowToOrder)
	if err != nil {
		return nil, dbError("list orders", err)
	}

	return orders, nil
}

func rowToOrder(row pgx.CollectableRow) (models.Order, error) {
	var o models.Order
	err := row.Scan(&o.ID, &o.Identity, &o.TotalGZM, &o.Cart, &o.CreatedAt)
	return o, err
}
