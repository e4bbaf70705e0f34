//go:build e2e

package quackwell_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/quackwell/internal/auth/app"
	"github.com/aussiebroadwan/quackwell/internal/auth/domain"
	"github.com/aussiebroadwan/quackwell/internal/auth/service"
	"github.com/aussiebroadwan/quackwell/pkg/authsdk"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * Common helpers for the end-to-end tests. Each test gets its own PostgreSQL
 * container and a fully wired application served over httptest, and talks
 * to it only through the SDK.
 */

const (
	adminEmail    = "admin@example.com"
	adminUsername = "admin"
	adminPassword = "Admin123!"
)

type harness struct {
	client *authsdk.SDKClient
	cfg    app.Config
	dsn    string
}

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:18-alpine",
		tcpostgres.WithDatabase("quackwell_e2e"),
		tcpostgres.WithUsername("quackwell"),
		tcpostgres.WithPassword("quackwell"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn
}

// setupService starts the application against a fresh database. mutate may
// adjust the config before the application is built.
func setupService(t *testing.T, mutate func(*app.Config)) *harness {
	t.Helper()

	cfg := app.Config{
		Env:  "test",
		Port: 0,
		Log:  app.LogConfig{Level: "warn", Format: "json"},
		DB:   app.DBConfig{Driver: "postgres", DSN: startPostgres(t)},
		JWT: app.JWTConfig{
			AccessSecret:  "e2e-access-secret",
			RefreshSecret: "e2e-refresh-secret",
			ResetSecret:   "e2e-reset-secret",
		},
		ResetURL:             "http://localhost:3000",
		Metrics:              true,
		ShutdownGracePeriod:  5 * time.Second,
		HousekeepingInterval: time.Hour,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	application, err := app.New(t.Context(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.Close() })

	srv := httptest.NewServer(application.Handler())
	t.Cleanup(srv.Close)

	return &harness{client: authsdk.NewSDKClient(srv.URL), cfg: cfg, dsn: cfg.DB.DSN}
}

// createAdmin creates an admin the way the CLI does, directly in the store.
func (h *harness) createAdmin(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	db, err := app.OpenStore(ctx, h.cfg.DB, app.NewLogger(h.cfg))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	auth, err := app.NewAuthService(h.cfg, db, nil, nil)
	require.NoError(t, err)

	_, err = auth.Register(ctx, service.RegisterInput{
		Email:    adminEmail,
		Username: adminUsername,
		Password: adminPassword,
		Role:     domain.RoleAdmin,
	})
	require.NoError(t, err)
}

func (h *harness) signup(t *testing.T, email, username, password string) *authsdk.Session {
	t.Helper()
	ctx := context.Background()

	_, err := h.client.Register(ctx, authsdk.RegisterRequest{Email: email, Username: username, Password: password})
	require.NoError(t, err)

	session, err := h.client.Login(ctx, email, password)
	require.NoError(t, err)
	return session
}
