package service_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/quackwell/internal/auth/service"
	"github.com/aussiebroadwan/quackwell/pkg/cryptox"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndVerifyResetToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.register(t, "alice@example.com", "alice", "old")

	token, err := f.svc.GenerateResetToken(ctx, u.ID)
	require.NoError(t, err)

	stored, err := f.store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ResetTokenHash)
	require.Equal(t, cryptox.FingerprintToken(token), *stored.ResetTokenHash)
	require.NotNil(t, stored.ResetTokenExpiry)
	require.True(t, stored.ResetTokenExpiry.Equal(f.clock.Now().Add(time.Hour)))

	id, err := f.svc.VerifyResetToken(ctx, token)
	require.NoError(t, err)
	require.Equal(t, u.ID, id)
}

func TestGenerateResetTokenUnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GenerateResetToken(context.Background(), "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZU")
	require.ErrorIs(t, err, service.ErrNotFound)
}

func TestVerifyResetTokenRejects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.register(t, "alice@example.com", "alice", "old")

	t.Run("empty", func(t *testing.T) {
		_, err := f.svc.VerifyResetToken(ctx, "")
		require.ErrorIs(t, err, service.ErrUnauthorized)
	})

	t.Run("access token", func(t *testing.T) {
		pair, _, err := f.svc.Login(ctx, "alice@example.com", "old")
		require.NoError(t, err)

		_, err = f.svc.VerifyResetToken(ctx, pair.AccessToken)
		require.ErrorIs(t, err, service.ErrUnauthorized)
	})

	t.Run("superseded", func(t *testing.T) {
		first, err := f.svc.GenerateResetToken(ctx, u.ID)
		require.NoError(t, err)
		f.clock.Advance(time.Second)
		_, err = f.svc.GenerateResetToken(ctx, u.ID)
		require.NoError(t, err)

		_, err = f.svc.VerifyResetToken(ctx, first)
		require.ErrorIs(t, err, service.ErrUnauthorized)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := f.svc.GenerateResetToken(ctx, u.ID)
		require.NoError(t, err)

		f.clock.Advance(61 * time.Minute)
		_, err = f.svc.VerifyResetToken(ctx, token)
		require.ErrorIs(t, err, service.ErrUnauthorized)
	})
}

func TestResetPasswordIsSingleUse(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.register(t, "alice@example.com", "alice", "old")

	token, err := f.svc.GenerateResetToken(ctx, u.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.ResetPassword(ctx, token, "new"))

	stored, err := f.store.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Nil(t, stored.ResetTokenHash)
	require.Nil(t, stored.ResetTokenExpiry)

	_, _, err = f.svc.Login(ctx, "alice@example.com", "old")
	require.ErrorIs(t, err, service.ErrUnauthorized)
	_, _, err = f.svc.Login(ctx, "alice@example.com", "new")
	require.NoError(t, err)

	err = f.svc.ResetPassword(ctx, token, "again")
	require.ErrorIs(t, err, service.ErrUnauthorized)

	_, err = f.svc.VerifyResetToken(ctx, token)
	require.ErrorIs(t, err, service.ErrUnauthorized)
}

func TestResetPasswordConcurrentUseWinsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.register(t, "alice@example.com", "alice", "old")

	token, err := f.svc.GenerateResetToken(ctx, u.ID)
	require.NoError(t, err)

	const attempts = 4
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = f.svc.ResetPassword(ctx, token, "new")
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.ErrorIs(t, err, service.ErrUnauthorized)
	}
	require.Equal(t, 1, succeeded)
}

func TestResetPasswordRejects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.register(t, "alice@example.com", "alice", "old")

	token, err := f.svc.GenerateResetToken(ctx, u.ID)
	require.NoError(t, err)

	require.ErrorIs(t, f.svc.ResetPassword(ctx, "", "new"), service.ErrBadRequest)
	require.ErrorIs(t, f.svc.ResetPassword(ctx, token, ""), service.ErrBadRequest)
	require.ErrorIs(t, f.svc.ResetPassword(ctx, token, strings.Repeat("a", 73)), service.ErrBadRequest)

	// Rejected attempts do not burn the token
	require.NoError(t, f.svc.ResetPassword(ctx, token, "new"))
}

func TestRequestPasswordReset(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.register(t, "alice@example.com", "alice", "old")

	require.NoError(t, f.svc.RequestPasswordReset(ctx, " Alice@example.com"))

	sent := f.mailer.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, "alice@example.com", sent[0].Address)
	require.True(t, strings.HasPrefix(sent[0].Link, "https://app.example.com/reset-password/"))

	token := strings.TrimPrefix(sent[0].Link, "https://app.example.com/reset-password/")
	id, err := f.svc.VerifyResetToken(ctx, token)
	require.NoError(t, err)
	require.Equal(t, u.ID, id)
}

func TestRequestPasswordResetFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "alice@example.com", "alice", "old")

	err := f.svc.RequestPasswordReset(ctx, "nobody@example.com")
	require.ErrorIs(t, err, service.ErrNotFound)

	f.mailer.err = errBoom
	err = f.svc.RequestPasswordReset(ctx, "alice@example.com")
	require.ErrorIs(t, err, service.ErrInternal)
	require.ErrorIs(t, err, errBoom)
}

func TestResetLink(t *testing.T) {
	require.Equal(t, "https://x.test/reset-password/tok", service.ResetLink("https://x.test", "tok"))
	require.Equal(t, "https://x.test/reset-password/tok", service.ResetLink("https://x.test/", "tok"))
}
