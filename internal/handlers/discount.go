package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/gizmocoin/internal/handlers/render"
	"github.com/nkiryanov/gizmocoin/internal/logger"
)

func handleIssueDiscount(issuer discountIssuer, l logger.Logger) http.HandlerFunc {
	type request struct {
		Amount *decimal.Decimal `json:"amount" validate:"required"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		req, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		grant, err := issuer.Issue(r.Context(), *req.Amount)
		if err != nil {
			renderError(w, l, "Failed to issue discount", err)
			return
		}

		render.JSONWithStatus(w, grantResponse{
			Code:      grant.Code,
			Value:     grant.Value,
			ExpiresAt: grant.ExpiresAt,
		}, http.StatusCreated)
	}
}
