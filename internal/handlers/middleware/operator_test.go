package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/gizmocoin/internal/apperrors"
	"github.com/nkiryanov/gizmocoin/internal/service/policy"
)

func TestCredential(t *testing.T) {
	t.Parallel()

	var got policy.Credential
	var found bool
	h := Credential(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, found = policy.CredentialFrom(r.Context())
	}))

	tests := []struct {
		name     string
		headers  map[string]string
		expected policy.Credential
		found    bool
	}{
		{
			name:    "no credential",
			headers: map[string]string{},
			found:   false,
		},
		{
			name:     "passphrase",
			headers:  map[string]string{PassphraseHeader: "open-sesame"},
			expected: policy.Credential{Passphrase: "open-sesame"},
			found:    true,
		},
		{
			name:     "bearer token",
			headers:  map[string]string{"Authorization": "Bearer eyJ.token"},
			expected: policy.Credential{Token: "eyJ.token"},
			found:    true,
		},
		{
			name:     "bearer case insensitive",
			headers:  map[string]string{"Authorization": "bearer eyJ.token"},
			expected: policy.Credential{Token: "eyJ.token"},
			found:    true,
		},
		{
			name:    "other auth scheme ignored",
			headers: map[string]string{"Authorization": "Basic dXNlcjpwd2Q="},
			found:   false,
		},
		{
			name:     "both",
			headers:  map[string]string{"Authorization": "Bearer t", PassphraseHeader: "p"},
			expected: policy.Credential{Passphrase: "p", Token: "t"},
			found:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found = policy.Credential{}, false
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}

			h.ServeHTTP(httptest.NewRecorder(), r)

			require.Equal(t, tt.found, found)
			require.Equal(t, tt.expected, got)
		})
	}
}

func TestRequireOperator(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("welcome"))
	})

	t.Run("allowed", func(t *testing.T) {
		allow := policy.AuthorizerFunc(func(context.Context) error { return nil })
		srv := httptest.NewServer(RequireOperator(allow)(handler))
		defer srv.Close()

		resp, err := http.Get(srv.URL)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		defer resp.Body.Close() // nolint:errcheck

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "welcome", string(body))
	})

	t.Run("denied", func(t *testing.T) {
		deny := policy.AuthorizerFunc(func(context.Context) error { return apperrors.ErrUnauthorized })
		srv := httptest.NewServer(RequireOperator(deny)(handler))
		defer srv.Close()

		resp, err := http.Get(srv.URL)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		defer resp.Body.Close() // nolint:errcheck

		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.JSONEq(t, `{"error": "service_error", "message": "Unauthorized"}`, string(body))
	})
}
