package middleware

import (
	"net/http"
	"strings"

	"github.com/nkiryanov/gizmocoin/internal/handlers/render"
	"github.com/nkiryanov/gizmocoin/internal/service/policy"
)

const (
	PassphraseHeader = "X-Operator-Passphrase"
	bearerPrefix     = "Bearer "
)

// Credential puts operator credential from request headers to context
// Requests without credential pass through untouched, deciding is policy's job
func Credential(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cred := policy.Credential{Passphrase: r.Header.Get(PassphraseHeader)}

		if auth := r.Header.Get("Authorization"); len(auth) > len(bearerPrefix) && strings.EqualFold(auth[:len(bearerPrefix)], bearerPrefix) {
			cred.Token = strings.TrimSpace(auth[len(bearerPrefix):])
		}

		if !cred.IsZero() {
			r = r.WithContext(policy.WithCredential(r.Context(), cred))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireOperator rejects request with 401 unless authorizer allows it
func RequireOperator(authorizer policy.Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := authorizer.Authorize(r.Context()); err != nil {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
