package commerce

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/gizmocoin/internal/apperrors"
)

const testToken = "shpat_test_token"

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{Token: testToken, BaseURL: srv.URL, Timeout: time.Second}, nil)
	require.NoError(t, err)
	return c
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		c, err := NewClient(Config{Store: "gizmo.myshopify.com", Token: testToken}, nil)
		require.NoError(t, err)

		require.Equal(t, "https://gizmo.myshopify.com/admin/api/2024-04", c.baseURL)
		require.Equal(t, DefaultTimeout, c.timeout)
	})

	t.Run("custom version", func(t *testing.T) {
		c, err := NewClient(Config{Store: "gizmo.myshopify.com", Token: testToken, APIVersion: "2025-01"}, nil)
		require.NoError(t, err)

		require.Equal(t, "https://gizmo.myshopify.com/admin/api/2025-01", c.baseURL)
	})

	t.Run("base url trailing slash", func(t *testing.T) {
		c, err := NewClient(Config{Token: testToken, BaseURL: "http://localhost:9999/"}, nil)
		require.NoError(t, err)

		require.Equal(t, "http://localhost:9999", c.baseURL)
	})

	t.Run("token required", func(t *testing.T) {
		_, err := NewClient(Config{Store: "gizmo.myshopify.com"}, nil)

		require.Error(t, err)
	})

	t.Run("store or base url required", func(t *testing.T) {
		_, err := NewClient(Config{Token: testToken}, nil)

		require.Error(t, err)
	})
}

func TestPriceRule_MarshalJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value    string
		expected string
	}{
		{"-44.85", "-44.85"},
		{"-44.8", "-44.80"},
		{"-5", "-5.00"},
		{"-0.01", "-0.01"},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			raw, err := json.Marshal(PriceRule{Title: "GZM-ABCDEFGHJK", Value: decimal.RequireFromString(tt.value)})
			require.NoError(t, err)

			var sent map[string]any
			require.NoError(t, json.Unmarshal(raw, &sent))
			require.Equal(t, tt.expected, sent["value"], "money sent with two decimals")
			require.Equal(t, "GZM-ABCDEFGHJK", sent["title"], "other fields kept")
			require.NotContains(t, sent, "id", "empty id omitted")
		})
	}
}

func TestClient_CreatePriceRule(t *testing.T) {
	t.Parallel()

	startsAt := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	endsAt := startsAt.Add(10 * time.Minute)
	limit := 1

	rule := PriceRule{
		Title:             "GZM-ABCDEFGHJK",
		TargetType:        TargetLineItem,
		TargetSelection:   TargetSelectionAll,
		AllocationMethod:  AllocationAcross,
		ValueType:         ValueTypeFixedAmount,
		Value:             decimal.RequireFromString("-44.85"),
		CustomerSelection: CustomerSelectionAll,
		OncePerCustomer:   true,
		UsageLimit:        &limit,
		StartsAt:          startsAt,
		EndsAt:            &endsAt,
	}

	t.Run("created", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/price_rules.json", r.URL.Path)
			assert.Equal(t, testToken, r.Header.Get("X-Shopify-Access-Token"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var body map[string]map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			sent := body["price_rule"]
			assert.Equal(t, "GZM-ABCDEFGHJK", sent["title"])
			assert.Equal(t, "-44.85", sent["value"])
			assert.Equal(t, "fixed_amount", sent["value_type"])
			assert.Equal(t, "line_item", sent["target_type"])
			assert.Equal(t, "across", sent["allocation_method"])
			assert.Equal(t, "all", sent["customer_selection"])
			assert.Equal(t, true, sent["once_per_customer"])
			assert.EqualValues(t, 1, sent["usage_limit"])
			assert.Equal(t, "2025-01-02T03:04:05Z", sent["starts_at"])
			assert.Equal(t, "2025-01-02T03:14:05Z", sent["ends_at"])

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"price_rule":{"id":507328175,"title":"GZM-ABCDEFGHJK","value":"-44.85","value_type":"fixed_amount","starts_at":"2025-01-02T03:04:05Z"}}`))
		})

		got, err := c.CreatePriceRule(t.Context(), rule)

		require.NoError(t, err)
		require.EqualValues(t, 507328175, got.ID)
		require.Equal(t, "GZM-ABCDEFGHJK", got.Title)
		require.True(t, got.Value.Equal(decimal.RequireFromString("-44.85")))
	})

	t.Run("rejected", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"errors":"[API] Invalid API key or access token"}`))
		})

		_, err := c.CreatePriceRule(t.Context(), rule)

		require.Error(t, err)
		require.ErrorIs(t, err, apperrors.ErrExternalService)

		var commerceErr *Error
		require.True(t, errors.As(err, &commerceErr))
		require.Equal(t, http.StatusUnauthorized, commerceErr.StatusCode)
		require.Equal(t, "create price rule", commerceErr.Op)
		require.NotContains(t, err.Error(), testToken, "token must never leak to errors")
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		t.Cleanup(srv.Close)
		t.Cleanup(func() { close(release) })

		c, err := NewClient(Config{Token: testToken, BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil)
		require.NoError(t, err)

		started := time.Now()
		_, err = c.CreatePriceRule(t.Context(), rule)

		require.ErrorIs(t, err, apperrors.ErrExternalService)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.Less(t, time.Since(started), 2*time.Second, "call must be bounded by timeout")
		require.NotContains(t, err.Error(), testToken)
	})

	t.Run("malformed response", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`not json`))
		})

		_, err := c.CreatePriceRule(t.Context(), rule)

		require.ErrorIs(t, err, apperrors.ErrExternalService)
	})

	t.Run("unreachable", func(t *testing.T) {
		c, err := NewClient(Config{Token: testToken, BaseURL: "http://127.0.0.1:1"}, nil)
		require.NoError(t, err)

		_, err = c.CreatePriceRule(t.Context(), rule)

		require.ErrorIs(t, err, apperrors.ErrExternalService)
	})
}

func TestClient_CreateDiscountCode(t *testing.T) {
	t.Parallel()

	t.Run("created", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/price_rules/507328175/discount_codes.json", r.URL.Path)
			assert.Equal(t, testToken, r.Header.Get("X-Shopify-Access-Token"))

			var body map[string]map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "GZM-ABCDEFGHJK", body["discount_code"]["code"])

			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"discount_code":{"id":1054381139,"price_rule_id":507328175,"code":"GZM-ABCDEFGHJK","usage_count":0,"created_at":"2025-01-02T03:04:06-05:00"}}`))
		})

		got, err := c.CreateDiscountCode(t.Context(), 507328175, "GZM-ABCDEFGHJK")

		require.NoError(t, err)
		require.EqualValues(t, 1054381139, got.ID)
		require.EqualValues(t, 507328175, got.PriceRuleID)
		require.Equal(t, "GZM-ABCDEFGHJK", got.Code)
		require.False(t, got.CreatedAt.IsZero())
	})

	t.Run("code taken", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"errors":{"code":["must be unique. Please try a different code."]}}`))
		})

		_, err := c.CreateDiscountCode(t.Context(), 1, "GZM-TAKEN")

		var commerceErr *Error
		require.True(t, errors.As(err, &commerceErr))
		require.True(t, commerceErr.CodeTaken())
	})

	t.Run("other validation error is not code taken", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"errors":{"price_rule":["is invalid"]}}`))
		})

		_, err := c.CreateDiscountCode(t.Context(), 1, "GZM-AAAA")

		var commerceErr *Error
		require.True(t, errors.As(err, &commerceErr))
		require.False(t, commerceErr.CodeTaken())
	})
}
