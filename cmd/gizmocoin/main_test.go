package main

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/gizmocoin/internal/testutil"
)

func Test_run(t *testing.T) {
	pg := testutil.StartPostgres(t)

	port, err := testutil.RandomPort()
	require.NoError(t, err, "failed to get random port to start server")
	listenAddr := fmt.Sprintf("localhost:%d", port)

	getwd := func() (string, error) { return t.TempDir(), nil }
	noenv := func(string) string { return "" }

	t.Run("stop with signal", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond) // Half Second
		t.Cleanup(cancel)

		err := run(ctx, noenv, getwd, []string{
			"--address", listenAddr,
			"--log-level", "debug",
			"--database", pg.DSN,
			"--secret-key", "secret",
			"--shopify-base-url", "http://127.0.0.1:1",
			"--shopify-token", "shpat_token",
		})

		require.NoError(t, err, "on correct stop should not return error")
	})

	t.Run("config from env", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		t.Cleanup(cancel)

		env := map[string]string{
			"RUN_ADDRESS":      listenAddr,
			"DATABASE_URI":     pg.DSN,
			"SECRET_KEY":       "secret",
			"SHOPIFY_BASE_URL": "http://127.0.0.1:1",
			"SHOPIFY_TOKEN":    "shpat_token",
			"ENVIRONMENT":      "development",
		}

		err := run(ctx, func(key string) string { return env[key] }, getwd, nil)

		require.NoError(t, err)
	})

	t.Run("invalid config", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond) // Half Second
		t.Cleanup(cancel)

		// Try to run without secret key. Must fail
		err := run(ctx, noenv, getwd, []string{
			"--address", listenAddr,
			"--log-level", "debug",
			"--database", pg.DSN,
			"--shopify-base-url", "http://127.0.0.1:1",
			"--shopify-token", "shpat_token",
		})

		require.Error(t, err, "on incorrect stop should return error")
	})

	t.Run("invalid address", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		t.Cleanup(cancel)

		err := run(ctx, noenv, getwd, []string{
			"--address", "256.0.0.1:99999",
			"--database", pg.DSN,
			"--secret-key", "secret",
			"--shopify-base-url", "http://127.0.0.1:1",
			"--shopify-token", "shpat_token",
		})

		require.Error(t, err)
	})
}
