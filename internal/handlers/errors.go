package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/gizmocoin/internal/apperrors"
	"github.com/nkiryanov/gizmocoin/internal/handlers/render"
	"github.com/nkiryanov/gizmocoin/internal/logger"
	"github.com/nkiryanov/gizmocoin/internal/service/validate"
)

const IdempotencyKeyHeader = "Idempotency-Key"

func idempotencyKey(r *http.Request) string {
	return r.Header.Get(IdempotencyKeyHeader)
}

// Identity from query string. Percent-decoded query may hold any bytes, so it is checked before services see it
func queryIdentity(r *http.Request) (string, error) {
	identity := r.URL.Query().Get("identity")
	return identity, validate.Identity(identity)
}

// Render service error with status of its category
// Input errors are shown as is, other failures are logged and rendered generic
func renderError(w http.ResponseWriter, l logger.Logger, msg string, err error) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		render.ServiceError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrUnauthorized):
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
	case errors.Is(err, apperrors.ErrBalanceInsufficient):
		render.ServiceError(w, "Insufficient balance", http.StatusPaymentRequired)
	case errors.Is(err, apperrors.ErrOrderNotFound):
		render.ServiceError(w, "Order not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrIdempotencyKeyReused):
		render.ServiceError(w, "Idempotency key already used for different request", http.StatusConflict)
	case errors.Is(err, apperrors.ErrOutOfRange):
		render.ServiceError(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, apperrors.ErrExternalService):
		l.Error(msg, "error", err)
		render.ServiceError(w, "Commerce platform unavailable", http.StatusBadGateway)
	case errors.Is(err, apperrors.ErrStorage):
		l.Error(msg, "error", err)
		render.ServiceError(w, "Storage unavailable", http.StatusServiceUnavailable)
	default:
		l.Error(msg, "error", err)
		render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
	}
}
