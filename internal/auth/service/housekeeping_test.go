package service_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aussiebroadwan/quackwell/internal/auth/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestHousekeepingClearsExpiredResetTokens(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.register(t, "alice@example.com", "alice", "pw")

	_, err := f.svc.GenerateResetToken(ctx, u.ID)
	require.NoError(t, err)

	hk := service.NewHousekeepingService(f.store, slog.New(slog.NewTextHandler(io.Discard, nil)), time.Hour)
	hk.Now = f.clock.Now

	require.Zero(t, hk.Cleanup(ctx))

	f.clock.Advance(2 * time.Hour)
	require.Equal(t, int64(1), hk.Cleanup(ctx))

	stored, err := f.store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Nil(t, stored.ResetTokenHash)
	require.Nil(t, stored.ResetTokenExpiry)
}

func TestHousekeepingStopLeavesNoGoroutines(t *testing.T) {
	f := newFixture(t)
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	hk := service.NewHousekeepingService(f.store, slog.New(slog.NewTextHandler(io.Discard, nil)), 10*time.Millisecond)
	hk.Start()
	time.Sleep(30 * time.Millisecond)
	hk.Stop()
}

func TestHousekeepingDefaultsInterval(t *testing.T) {
	hk := service.NewHousekeepingService(nil, slog.Default(), 0)
	require.Equal(t, time.Hour, hk.Interval)
}
