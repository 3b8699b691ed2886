package handlers_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/gizmocoin/internal/handlers"
	"github.com/nkiryanov/gizmocoin/internal/logger"
	"github.com/nkiryanov/gizmocoin/internal/repository/postgres"
	"github.com/nkiryanov/gizmocoin/internal/service/checkout"
	"github.com/nkiryanov/gizmocoin/internal/service/commerce"
	"github.com/nkiryanov/gizmocoin/internal/service/discount"
	"github.com/nkiryanov/gizmocoin/internal/service/ledger"
	"github.com/nkiryanov/gizmocoin/internal/service/policy"
	"github.com/nkiryanov/gizmocoin/internal/service/redemption"
	"github.com/nkiryanov/gizmocoin/internal/testutil"
)

const operatorPassphrase = "open-sesame"

// Shopify Admin API stand-in. Attaching codes fails while failAttach is set
type shopify struct {
	rules      atomic.Int64
	codes      atomic.Int64
	failAttach atomic.Bool
}

func (s *shopify) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/price_rules.json":
		id := 1000 + s.rules.Add(1)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"price_rule":{"id":`+jsonInt(id)+`}}`)
	case strings.HasSuffix(r.URL.Path, "/discount_codes.json"):
		if s.failAttach.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		s.codes.Add(1)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.Copy(w, r.Body)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func jsonInt(v int64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// Run whole service stack in one rolled back transaction
func serveWithTx(t *testing.T, fn func(srvURL string, shop *shopify)) {
	pg := testutil.StartPostgres(t)

	testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
		shop := &shopify{}
		shopSrv := httptest.NewServer(shop)
		defer shopSrv.Close()

		l := logger.NewNoOpLogger()
		storage := postgres.NewStorage(tx)

		passphrase, err := policy.NewPassphrase(operatorPassphrase)
		require.NoError(t, err)

		ls, err := ledger.NewService(ledger.Config{Authorizer: passphrase}, storage, l)
		require.NoError(t, err)
		cs, err := checkout.NewService(ls, storage, l)
		require.NoError(t, err)
		client, err := commerce.NewClient(commerce.Config{Token: "shpat_test", BaseURL: shopSrv.URL}, l)
		require.NoError(t, err)
		bridge, err := discount.NewBridge(discount.Config{}, client, l)
		require.NoError(t, err)
		rs, err := redemption.NewService(ls, bridge, l)
		require.NoError(t, err)

		srv := httptest.NewServer(handlers.NewRouter(handlers.Services{
			Wallet:     ls,
			Checkout:   cs,
			Redemption: rs,
			Discounts:  bridge,
			Operator:   passphrase,
		}, l))
		defer srv.Close()

		fn(srv.URL, shop)
	})
}

func call(t *testing.T, method string, url string, body string, headers ...string) (int, map[string]any) {
	t.Helper()

	req, err := http.NewRequestWithContext(t.Context(), method, url, strings.NewReader(body))
	require.NoError(t, err)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() // nolint:errcheck

	var out map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoErrorf(t, json.Unmarshal(raw, &out), "body: %s", raw)
	return resp.StatusCode, out
}

func TestWallet_EndToEnd(t *testing.T) {
	t.Parallel()

	serveWithTx(t, func(url string, shop *shopify) {
		balance := func(t *testing.T) string {
			code, body := call(t, http.MethodGet, url+"/api/wallet/balance?identity=a@x.com", "")
			require.Equal(t, http.StatusOK, code)
			return body["balance"].(string)
		}

		t.Run("new identity has zero balance", func(t *testing.T) {
			require.Equal(t, "0", balance(t))
		})

		t.Run("malformed identity rejected before storage", func(t *testing.T) {
			code, body := call(t, http.MethodGet, url+"/api/wallet/balance?identity=a%ff@x.com", "")

			require.Equal(t, http.StatusBadRequest, code)
			require.Equal(t, "service_error", body["error"])
		})

		t.Run("convert 100 at rate 25", func(t *testing.T) {
			code, body := call(t, http.MethodPost, url+"/api/wallet/convert", `{"identity": "a@x.com", "amount": 100}`, "Idempotency-Key", "conv-1")

			require.Equal(t, http.StatusOK, code)
			require.Equal(t, "4", body["gizmo"])
			require.Equal(t, "4", body["balance"])
		})

		t.Run("convert replay credits once", func(t *testing.T) {
			code, body := call(t, http.MethodPost, url+"/api/wallet/convert", `{"identity": "a@x.com", "amount": 100}`, "Idempotency-Key", "conv-1")

			require.Equal(t, http.StatusOK, code)
			require.Equal(t, "4", body["balance"])
			require.Equal(t, "4", balance(t))
		})

		t.Run("key reused for other amount", func(t *testing.T) {
			code, _ := call(t, http.MethodPost, url+"/api/wallet/convert", `{"identity": "a@x.com", "amount": 50}`, "Idempotency-Key", "conv-1")

			require.Equal(t, http.StatusConflict, code)
		})

		t.Run("other customer may use the same key", func(t *testing.T) {
			code, body := call(t, http.MethodPost, url+"/api/wallet/convert", `{"identity": "b@x.com", "amount": 50}`, "Idempotency-Key", "conv-1")

			require.Equal(t, http.StatusOK, code)
			require.Equal(t, "2", body["balance"])
		})

		t.Run("checkout spends part", func(t *testing.T) {
			code, body := call(t, http.MethodPost, url+"/api/checkout", `{"identity": "a@x.com", "cart": [{"id": "sku-1", "price": 50, "quantity": 1}]}`)

			require.Equal(t, http.StatusOK, code)
			require.Equal(t, "2", body["total"])
			require.Equal(t, "2", body["remaining"])
			require.NotEmpty(t, body["order_id"])

			code, order := call(t, http.MethodGet, url+"/api/orders/"+body["order_id"].(string), "")
			require.Equal(t, http.StatusOK, code)
			require.Equal(t, "a@x.com", order["identity"])
		})

		t.Run("checkout over balance", func(t *testing.T) {
			code, body := call(t, http.MethodPost, url+"/api/checkout", `{"identity": "a@x.com", "total": "2.000001"}`)

			require.Equal(t, http.StatusPaymentRequired, code)
			require.NotContains(t, body, "order_id")
			require.Equal(t, "2", balance(t))
		})

		t.Run("redeem issues code", func(t *testing.T) {
			code, body := call(t, http.MethodPost, url+"/api/wallet/redeem", `{"identity": "a@x.com", "amount": "1"}`)

			require.Equal(t, http.StatusOK, code)
			require.True(t, strings.HasPrefix(body["code"].(string), discount.CodePrefix))
			require.Equal(t, "25", body["value"])
			require.Equal(t, "1", body["balance"])
			require.EqualValues(t, 1, shop.codes.Load())
		})

		t.Run("redeem refunded when platform fails", func(t *testing.T) {
			shop.failAttach.Store(true)
			defer shop.failAttach.Store(false)

			code, _ := call(t, http.MethodPost, url+"/api/wallet/redeem", `{"identity": "a@x.com", "amount": "0.5"}`)

			require.Equal(t, http.StatusBadGateway, code)
			require.Equal(t, "1", balance(t), "balance restored")
		})

		t.Run("adjust needs operator", func(t *testing.T) {
			code, _ := call(t, http.MethodPost, url+"/api/wallet/adjust", `{"identity": "a@x.com", "amount": "10"}`)
			require.Equal(t, http.StatusUnauthorized, code)

			code, body := call(t, http.MethodPost, url+"/api/wallet/adjust", `{"identity": "a@x.com", "amount": "10"}`, "X-Operator-Passphrase", operatorPassphrase)
			require.Equal(t, http.StatusOK, code)
			require.Equal(t, "11", body["balance"])
		})

		t.Run("adjust over cap", func(t *testing.T) {
			code, _ := call(t, http.MethodPost, url+"/api/wallet/adjust", `{"identity": "a@x.com", "amount": "1000.000001"}`, "X-Operator-Passphrase", operatorPassphrase)

			require.Equal(t, http.StatusUnprocessableEntity, code)
			require.Equal(t, "11", balance(t))
		})

		t.Run("operator issues discount", func(t *testing.T) {
			code, body := call(t, http.MethodPost, url+"/api/discounts", `{"amount": "5"}`, "X-Operator-Passphrase", operatorPassphrase)

			require.Equal(t, http.StatusCreated, code)
			require.Equal(t, "5", body["value"])
		})
	})
}
