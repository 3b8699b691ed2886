package handlers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/gizmocoin/internal/handlers/render"
	"github.com/nkiryanov/gizmocoin/internal/logger"
)

// Amounts are rendered as decimal strings to keep GZM precision
type balanceResponse struct {
	Identity string          `json:"identity"`
	Balance  decimal.Decimal `json:"balance"`
}

type amountRequest struct {
	Identity string           `json:"identity" validate:"required,identity"`
	Amount   *decimal.Decimal `json:"amount" validate:"required"`
}

func handleBalance(wallet walletService, l logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := queryIdentity(r)
		if err != nil {
			renderError(w, l, "Failed to get balance", err)
			return
		}

		account, err := wallet.Balance(r.Context(), identity)
		if err != nil {
			renderError(w, l, "Failed to get balance", err)
			return
		}

		render.JSON(w, balanceResponse{Identity: account.Identity, Balance: account.Balance})
	}
}

func handleAdjust(wallet walletService, l logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := render.BindAndValidate[amountRequest](w, r)
		if err != nil {
			return
		}

		op, err := wallet.Adjust(r.Context(), req.Identity, *req.Amount, idempotencyKey(r))
		if err != nil {
			renderError(w, l, "Failed to adjust balance", err)
			return
		}

		render.JSON(w, balanceResponse{Identity: op.Identity, Balance: op.BalanceAfter})
	}
}

func handleConvert(wallet walletService, l logger.Logger) http.HandlerFunc {
	type response struct {
		Identity string          `json:"identity"`
		Gizmo    decimal.Decimal `json:"gizmo"`
		Balance  decimal.Decimal `json:"balance"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		req, err := render.BindAndValidate[amountRequest](w, r)
		if err != nil {
			return
		}

		conv, err := wallet.Convert(r.Context(), req.Identity, *req.Amount, idempotencyKey(r))
		if err != nil {
			renderError(w, l, "Failed to convert", err)
			return
		}

		render.JSON(w, response{Identity: req.Identity, Gizmo: conv.Granted, Balance: conv.Balance})
	}
}

type grantResponse struct {
	Code      string           `json:"code"`
	Value     decimal.Decimal  `json:"value"`
	ExpiresAt time.Time        `json:"expires_at"`
	Balance   *decimal.Decimal `json:"balance,omitempty"`
}

func handleRedeem(redemption redemptionService, l logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := render.BindAndValidate[amountRequest](w, r)
		if err != nil {
			return
		}

		red, err := redemption.Redeem(r.Context(), req.Identity, *req.Amount)
		if err != nil {
			renderError(w, l, "Failed to redeem", err)
			return
		}

		render.JSON(w, grantResponse{
			Code:      red.Grant.Code,
			Value:     red.Grant.Value,
			ExpiresAt: red.Grant.ExpiresAt,
			Balance:   &red.Balance,
		})
	}
}
