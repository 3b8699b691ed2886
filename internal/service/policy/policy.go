// Package policy holds pluggable gates for operator-only ledger actions.
//
// An Authorizer decides from request context only. HTTP middleware puts the operator
// credential into the context, ledger code asks the Authorizer and never looks at the
// credential itself.
package policy

import (
	"context"
	"errors"

	"github.com/nkiryanov/gizmocoin/internal/apperrors"
)

type Authorizer interface {
	// Return nil to allow the request or error wrapping apperrors.ErrUnauthorized to deny it
	Authorize(ctx context.Context) error
}

// AuthorizerFunc adapts ordinary function to Authorizer
type AuthorizerFunc func(ctx context.Context) error

func (f AuthorizerFunc) Authorize(ctx context.Context) error {
	return f(ctx)
}

// DenyAll rejects every request. Used when no operator credential is configured
var DenyAll Authorizer = AuthorizerFunc(func(context.Context) error {
	return apperrors.ErrUnauthorized
})

// Allow if any of authorizers allows
// Empty list denies everything
func Any(authorizers ...Authorizer) Authorizer {
	return AuthorizerFunc(func(ctx context.Context) error {
		errs := make([]error, 0, len(authorizers))
		for _, a := range authorizers {
			err := a.Authorize(ctx)
			if err == nil {
				return nil
			}
			errs = append(errs, err)
		}

		if len(errs) == 0 {
			return apperrors.ErrUnauthorized
		}
		return errors.Join(errs...)
	})
}

// Credential presented by caller
type Credential struct {
	Passphrase string
	Token      string
}

func (c Credential) IsZero() bool {
	return c.Passphrase == "" && c.Token == ""
}

type credentialKey struct{}

func WithCredential(ctx context.Context, cred Credential) context.Context {
	return context.WithValue(ctx, credentialKey{}, cred)
}

func CredentialFrom(ctx context.Context) (Credential, bool) {
	cred, ok := ctx.Value(credentialKey{}).(Credential)
	return cred, ok
}
