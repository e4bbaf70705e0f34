// Package observability holds the service's Prometheus metrics.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains custom Prometheus metrics for the auth service.
//
// All Record methods are safe on a nil *Metrics, so services can be built
// without metrics in tests.
type Metrics struct {
	LoginsTotal        *prometheus.CounterVec
	TokensIssuedTotal  *prometheus.CounterVec
	RefreshTotal       *prometheus.CounterVec
	AuthzDecisions     *prometheus.CounterVec
	PasswordResetTotal *prometheus.CounterVec
	MailTotal          *prometheus.CounterVec
	RateLimitedTotal   *prometheus.CounterVec
	HTTPRequestsTotal  *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// NewMetrics creates and registers the auth metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quackwell_logins_total",
			Help: "Login attempts by method and result",
		}, []string{"method", "result"}),
		TokensIssuedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quackwell_tokens_issued_total",
			Help: "Tokens signed by kind",
		}, []string{"kind"}),
		RefreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quackwell_token_refresh_total",
			Help: "Access token renewals by trigger and result",
		}, []string{"trigger", "result"}),
		AuthzDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quackwell_authz_decisions_total",
			Help: "Authorization decisions by outcome and reason",
		}, []string{"outcome", "reason"}),
		PasswordResetTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quackwell_password_reset_total",
			Help: "Password reset flow steps by stage and result",
		}, []string{"stage", "result"}),
		MailTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quackwell_mail_total",
			Help: "Outbound mail by result",
		}, []string{"result"}),
		RateLimitedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quackwell_rate_limited_total",
			Help: "Requests rejected by the rate limiter by profile",
		}, []string{"profile"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quackwell_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "quackwell_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		m.LoginsTotal,
		m.TokensIssuedTotal,
		m.RefreshTotal,
		m.AuthzDecisions,
		m.PasswordResetTotal,
		m.MailTotal,
		m.RateLimitedTotal,
		m.HTTPRequestsTotal,
		m.HTTPDuration,
	)
	return m
}

// NewRegistry returns a registry with the Go and process collectors, so the
// service does not pollute the global one.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler exposes reg in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) RecordLogin(method string, err error) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(method, result(err)).Inc()
}

func (m *Metrics) RecordTokenIssued(kind string) {
	if m == nil {
		return
	}
	m.TokensIssuedTotal.WithLabelValues(kind).Inc()
}

// RecordRefresh counts a renewal; trigger is "endpoint" or "guard".
func (m *Metrics) RecordRefresh(trigger string, err error) {
	if m == nil {
		return
	}
	m.RefreshTotal.WithLabelValues(trigger, result(err)).Inc()
}

func (m *Metrics) RecordDecision(allowed bool, reason string) {
	if m == nil {
		return
	}
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	m.AuthzDecisions.WithLabelValues(outcome, reason).Inc()
}

func (m *Metrics) RecordPasswordReset(stage string, err error) {
	if m == nil {
		return
	}
	m.PasswordResetTotal.WithLabelValues(stage, result(err)).Inc()
}

func (m *Metrics) RecordMail(err error) {
	if m == nil {
		return
	}
	m.MailTotal.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) RecordRateLimited(profile string) {
	if m == nil {
		return
	}
	m.RateLimitedTotal.WithLabelValues(profile).Inc()
}

// Instrument records the status and latency of requests served by next under
// the given route label.
func (m *Metrics) Instrument(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			m.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
			m.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		})
	}
}

type statusWriter struct {
	http.ResponseWriter

	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
