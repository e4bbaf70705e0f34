package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/aussiebroadwan/quackwell/pkg/authsdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	clearEnv(t)

	cfg, err := LoadConfig(nil)
	require.NoError(t, err)
	cfg.Log.Level = "error"
	cfg.DB.DSN = filepath.Join(t.TempDir(), "quackwell.db")
	return cfg
}

func TestNewServesHealth(t *testing.T) {
	application, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	for _, path := range []string{"/livez", "/readyz"} {
		rec := httptest.NewRecorder()
		application.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)

		var health authsdk.HealthResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&health))
		assert.Equal(t, "ok", health.Status)
		assert.Equal(t, BuildVersion, health.Version)
	}

	rec := httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewWithoutMetrics(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics = false

	application, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	rec := httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Env = "prod"

	_, err := New(context.Background(), cfg)
	require.ErrorIs(t, err, ErrMissingSecret)
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	_, err := OpenStore(context.Background(), DBConfig{Driver: "mongo", DSN: "x"}, NewLogger(Config{Log: LogConfig{Level: "error"}}))
	require.ErrorIs(t, err, ErrUnknownDriver)
}

func TestNewMailer(t *testing.T) {
	logger := NewLogger(Config{Log: LogConfig{Level: "error"}})

	t.Run("logs without smtp host", func(t *testing.T) {
		mailer, reliable := NewMailer(MailConfig{}, logger)
		assert.Equal(t, "no-reply@localhost", mailer.From)
		assert.Equal(t, "closed", reliable.State())
		require.NoError(t, mailer.SendPasswordResetEmail(context.Background(), "ada@example.com", "https://app.example.com/reset-password/t"))
	})

	t.Run("smtp keeps configured sender", func(t *testing.T) {
		mailer, _ := NewMailer(MailConfig{Host: "smtp.example.com", Port: 587, From: "support@example.com"}, logger)
		assert.Equal(t, "support@example.com", mailer.From)
		assert.NotNil(t, mailer.Sender)
	})
}
