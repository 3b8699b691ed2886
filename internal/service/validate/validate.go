package validate

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/nkiryanov/gizmocoin/internal/apperrors"
)

// Longest identity accepted. Matches the longest possible email address
const MaxIdentityLen = 320

// Identity checks customer identity is usable as account key.
// Identity is opaque and kept exactly as supplied, so it is not trimmed or lowercased here
func Identity(identity string) error {
	switch {
	case strings.TrimSpace(identity) == "":
		return fmt.Errorf("%w: identity is empty", apperrors.ErrInvalidInput)
	case len(identity) > MaxIdentityLen:
		return fmt.Errorf("%w: identity is longer than %d bytes", apperrors.ErrInvalidInput, MaxIdentityLen)
	case !utf8.ValidString(identity):
		return fmt.Errorf("%w: identity is not valid UTF-8", apperrors.ErrInvalidInput)
	}

	for _, r := range identity {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: identity contains control characters", apperrors.ErrInvalidInput)
		}
	}

	return nil
}

// Positive checks amount is greater than zero and has at most 'places' fractional digits
func Positive(amount decimal.Decimal, places int32) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", apperrors.ErrInvalidInput)
	}

	return Precision(amount, places)
}

// Precision checks amount has at most 'places' fractional digits
func Precision(amount decimal.Decimal, places int32) error {
	if !amount.Equal(amount.Truncate(places)) {
		return fmt.Errorf("%w: amount has more than %d decimal places", apperrors.ErrInvalidInput, places)
	}
	return nil
}

var errEmptyKey = errors.New("idempotency key is blank")

// IdempotencyKey checks an optional idempotency key. Empty key is allowed and means 'no deduplication'
func IdempotencyKey(key string) error {
	switch {
	case key == "":
		return nil
	case strings.TrimSpace(key) == "":
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidInput, errEmptyKey)
	case len(key) > 255:
		return fmt.Errorf("%w: idempotency key is longer than 255 bytes", apperrors.ErrInvalidInput)
	default:
		return nil
	}
}
