package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/quackwell/internal/auth/domain"
	"github.com/aussiebroadwan/quackwell/internal/auth/observability"
	"github.com/aussiebroadwan/quackwell/internal/auth/service"
	"github.com/aussiebroadwan/quackwell/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/quackwell/pkg/cryptox"
	"github.com/aussiebroadwan/quackwell/pkg/jwtx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type sentMail struct {
	Address string
	Link    string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) SendPasswordResetEmail(_ context.Context, address, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{Address: address, Link: link})
	return nil
}

func (m *fakeMailer) Sent() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

type fixture struct {
	svc     *service.AuthService
	store   *sqlite.Store
	clock   *clock
	mailer  *fakeMailer
	metrics *observability.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	clk := newClock()
	codec := func(kind jwtx.Kind, secret string) *jwtx.Codec {
		c, err := jwtx.NewCodec(kind, secret, 0, jwtx.WithClock(clk.Now))
		require.NoError(t, err)
		return c
	}

	mailer := &fakeMailer{}
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	svc := &service.AuthService{
		Store:        st,
		Hasher:       cryptox.Bcrypt{Cost: bcrypt.MinCost},
		Access:       codec(jwtx.KindAccess, "access-secret"),
		Refresh:      codec(jwtx.KindRefresh, "refresh-secret"),
		Reset:        codec(jwtx.KindReset, "reset-secret"),
		Mailer:       mailer,
		ResetURLBase: "https://app.example.com/",
		Metrics:      metrics,
		Now:          clk.Now,
	}

	return &fixture{svc: svc, store: st, clock: clk, mailer: mailer, metrics: metrics}
}

func (f *fixture) register(t *testing.T, email, username, password string) domain.User {
	t.Helper()
	u, err := f.svc.Register(context.Background(), service.RegisterInput{
		Email:    email,
		Username: username,
		Password: password,
	})
	require.NoError(t, err)
	return u
}

var errBoom = errors.New("boom")
