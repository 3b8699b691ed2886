package apperrors

import (
	"errors"
)

var (
	// Request is malformed: empty identity, non-positive amount, too many decimals etc.
	// Always detected before storage is touched
	ErrInvalidInput = errors.New("invalid input")

	// Policy gate denied the request (wrong passphrase, missing or expired operator token)
	ErrUnauthorized = errors.New("unauthorized")

	// Amount exceeds a configured policy bound or would push balance past its storage limit
	ErrOutOfRange = errors.New("amount out of allowed range")

	ErrBalanceInsufficient = errors.New("insufficient balance")

	// Commerce platform call failed, timed out or answered with unexpected status
	ErrExternalService = errors.New("external service failure")

	// Durable store is unreachable or failed. Transient conflicts are retried before this is returned
	ErrStorage = errors.New("storage failure")

	// Same idempotency key was sent with different operation parameters
	ErrIdempotencyKeyReused = errors.New("idempotency key already used for different operation")

	ErrOrderNotFound = errors.New("order not found")
)
