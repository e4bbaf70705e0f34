package observability_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/quackwell/internal/auth/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *observability.Metrics

	require.NotPanics(t, func() {
		m.RecordLogin("password", nil)
		m.RecordTokenIssued("access")
		m.RecordRefresh("guard", errors.New("x"))
		m.RecordDecision(false, "invalid_token")
		m.RecordPasswordReset("request", nil)
		m.RecordMail(nil)
		m.RecordRateLimited("strict")
	})

	h := m.Instrument("GET /livez")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRecordCounters(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())

	m.RecordLogin("password", nil)
	m.RecordLogin("password", errors.New("bad"))
	m.RecordLogin("password", errors.New("bad"))
	m.RecordDecision(true, "")
	m.RecordDecision(false, "insufficient_role")
	m.RecordRateLimited("strict")

	require.InDelta(t, 1, testutil.ToFloat64(m.LoginsTotal.WithLabelValues("password", "ok")), 0)
	require.InDelta(t, 2, testutil.ToFloat64(m.LoginsTotal.WithLabelValues("password", "error")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.AuthzDecisions.WithLabelValues("deny", "insufficient_role")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.RateLimitedTotal.WithLabelValues("strict")), 0)
}

func TestInstrumentAndHandler(t *testing.T) {
	reg := observability.NewRegistry()
	m := observability.NewMetrics(reg)

	h := m.Instrument("GET /v1/todos")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/todos", nil))

	require.InDelta(t, 1, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET /v1/todos", "401")), 0)

	rec := httptest.NewRecorder()
	observability.Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "quackwell_http_requests_total")
}
