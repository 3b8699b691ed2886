package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/gizmocoin/internal/handlers/render"
	"github.com/nkiryanov/gizmocoin/internal/logger"
	"github.com/nkiryanov/gizmocoin/internal/models"
	"github.com/nkiryanov/gizmocoin/internal/service/checkout"
)

type orderResponse struct {
	ID        uuid.UUID         `json:"id"`
	Identity  string            `json:"identity"`
	Total     decimal.Decimal   `json:"total"`
	Cart      []models.CartItem `json:"cart"`
	CreatedAt time.Time         `json:"created_at"`
}

func newOrderResponse(o models.Order) orderResponse {
	cart := o.Cart
	if cart == nil {
		cart = []models.CartItem{}
	}

	return orderResponse{
		ID:        o.ID,
		Identity:  o.Identity,
		Total:     o.TotalGZM,
		Cart:      cart,
		CreatedAt: o.CreatedAt,
	}
}

func handleCheckout(s checkoutService, l logger.Logger) http.HandlerFunc {
	type request struct {
		Identity string            `json:"identity" validate:"required,identity"`
		Total    *decimal.Decimal  `json:"total"`
		Cart     []models.CartItem `json:"cart" validate:"max=100"`
	}

	type response struct {
		OrderID   uuid.UUID         `json:"order_id"`
		Total     decimal.Decimal   `json:"total"`
		Remaining decimal.Decimal   `json:"remaining"`
		Cart      []models.CartItem `json:"cart"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		receipt, err := s.Checkout(r.Context(), checkout.Request{
			Identity:       req.Identity,
			Total:          req.Total,
			Cart:           req.Cart,
			IdempotencyKey: idempotencyKey(r),
		})
		if err != nil {
			renderError(w, l, "Failed to checkout", err)
			return
		}

		order := newOrderResponse(receipt.Order)
		render.JSON(w, response{
			OrderID:   order.ID,
			Total:     order.Total,
			Remaining: receipt.Remaining,
			Cart:      order.Cart,
		})
	}
}

func handleGetOrder(s checkoutService, l logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			render.ServiceError(w, "Invalid order id", http.StatusBadRequest)
			return
		}

		order, err := s.GetOrder(r.Context(), id)
		if err != nil {
			renderError(w, l, "Failed to get order", err)
			return
		}

		render.JSON(w, newOrderResponse(order))
	}
}

func handleListOrders(s checkoutService, l logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := queryIdentity(r)
		if err != nil {
			renderError(w, l, "Failed to list orders", err)
			return
		}

		orders, err := s.ListOrders(r.Context(), identity)
		if err != nil {
			renderError(w, l, "Failed to list orders", err)
			return
		}

		res := make([]orderResponse, 0, len(orders))
		for _, o := range orders {
			res = append(res, newOrderResponse(o))
		}
		render.JSON(w, res)
	}
}
