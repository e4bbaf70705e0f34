package httpx_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/quackwell/pkg/httpx"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

type manualClock struct{ t time.Time }

func (c *manualClock) Now() time.Time          { return c.t }
func (c *manualClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func fromIP(ip string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = ip + ":12345"
	return req
}

func jsonRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "192.168.1.1:12345"
	return req
}

func limitByIP(cfg httpx.RateLimitConfig, opts ...httpx.RateLimitOption) httpx.Middleware {
	return httpx.LimitByClient(cfg, httpx.IPKeyExtractor, opts...)
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIPKeyExtractor(t *testing.T) {
	t.Run("forwarding headers are ignored", func(t *testing.T) {
		req := fromIP("192.168.1.1")
		req.Header.Set("X-Forwarded-For", "203.0.113.1")
		req.Header.Set("X-Real-IP", "203.0.113.2")
		require.Equal(t, "192.168.1.1", httpx.IPKeyExtractor(req))
	})

	t.Run("remote addr without port", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "unix"
		require.Equal(t, "unix", httpx.IPKeyExtractor(req))
	})
}

func TestForwardedIPKeyExtractor(t *testing.T) {
	trusted, err := httpx.ParseTrustedProxies([]string{"10.0.0.0/8", "172.16.0.5"})
	require.NoError(t, err)
	extract := httpx.ForwardedIPKeyExtractor(trusted)

	tests := []struct {
		name    string
		peer    string
		headers map[string]string
		want    string
	}{
		{"untrusted peer spoofing forwarded for", "198.51.100.7", map[string]string{"X-Forwarded-For": "203.0.113.1"}, "198.51.100.7"},
		{"untrusted peer spoofing real ip", "198.51.100.7", map[string]string{"X-Real-IP": "203.0.113.2"}, "198.51.100.7"},
		{"trusted peer without headers", "10.0.0.1", nil, "10.0.0.1"},
		{"trusted peer", "10.0.0.1", map[string]string{"X-Forwarded-For": "203.0.113.1"}, "203.0.113.1"},
		{"client prepended hops are skipped", "10.0.0.1", map[string]string{"X-Forwarded-For": "1.2.3.4, 203.0.113.1, 172.16.0.5"}, "203.0.113.1"},
		{"real ip from trusted peer", "172.16.0.5", map[string]string{"X-Real-IP": " 203.0.113.2 "}, "203.0.113.2"},
		{"garbage forwarded hop falls through", "10.0.0.1", map[string]string{"X-Forwarded-For": "not-an-ip", "X-Real-IP": "203.0.113.3"}, "203.0.113.3"},
		{"every hop trusted", "10.0.0.1", map[string]string{"X-Forwarded-For": "10.1.1.1, 10.2.2.2"}, "10.1.1.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := fromIP(tt.peer)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			require.Equal(t, tt.want, extract(req))
		})
	}
}

func TestParseTrustedProxies(t *testing.T) {
	prefixes, err := httpx.ParseTrustedProxies([]string{"10.0.0.0/8, 192.168.1.1", " ", "::1"})
	require.NoError(t, err)
	require.Len(t, prefixes, 3)
	require.Equal(t, 32, prefixes[1].Bits())

	_, err = httpx.ParseTrustedProxies([]string{"10.0.0.0/8", "proxy.internal"})
	require.ErrorContains(t, err, "proxy.internal")
}

func TestRateLimitsClientIP(t *testing.T) {
	req := fromIP("10.0.0.1")
	req.Header.Set("X-Forwarded-For", "203.0.113.1")

	require.Equal(t, "10.0.0.1", httpx.RateLimits{}.ClientIP()(req))
	require.Equal(t, "203.0.113.1", httpx.RateLimits{TrustedProxies: []string{"10.0.0.0/8"}}.ClientIP()(req))
}

func TestSpoofedForwardingDoesNotEvadeLimit(t *testing.T) {
	h := limitByIP(httpx.RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute})(okHandler)

	for i := range 5 {
		req := fromIP("198.51.100.7")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		rec := serve(h, req)
		if i < 2 {
			require.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
		} else {
			require.Equal(t, http.StatusTooManyRequests, rec.Code, "request %d", i+1)
		}
	}
}

func TestJSONFieldKeyExtractor(t *testing.T) {
	t.Run("normalises the field and restores the body", func(t *testing.T) {
		body := `{"email":" Alice@Example.com ","password":"x"}`
		req := jsonRequest(body)

		require.Equal(t, "alice@example.com", httpx.JSONFieldKeyExtractor("email")(req))

		raw, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		require.Equal(t, body, string(raw))
	})

	t.Run("missing field", func(t *testing.T) {
		require.Empty(t, httpx.JSONFieldKeyExtractor("email")(jsonRequest(`{"username":"bob"}`)))
	})

	t.Run("not json", func(t *testing.T) {
		require.Empty(t, httpx.JSONFieldKeyExtractor("email")(jsonRequest(`email=bob`)))
	})

	t.Run("non string field", func(t *testing.T) {
		require.Empty(t, httpx.JSONFieldKeyExtractor("email")(jsonRequest(`{"email":42}`)))
	})
}

func TestCombineKeys(t *testing.T) {
	extract := httpx.CombineKeys(httpx.IPKeyExtractor, httpx.JSONFieldKeyExtractor("email"))

	require.Equal(t, "192.168.1.1:alice@example.com", extract(jsonRequest(`{"email":"alice@example.com"}`)))
	require.Equal(t, "192.168.1.1", extract(jsonRequest(`{}`)))
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := httpx.RateLimitConfig{RequestsPerWindow: 3, Window: time.Minute}

	t.Run("burst defaults to requests per window", func(t *testing.T) {
		h := limitByIP(cfg)(okHandler)

		for i := range 3 {
			require.Equal(t, http.StatusOK, serve(h, fromIP("192.168.1.1")).Code, "request %d", i+1)
		}
		require.Equal(t, http.StatusTooManyRequests, serve(h, fromIP("192.168.1.1")).Code)
	})

	t.Run("keys are independent", func(t *testing.T) {
		h := limitByIP(httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute})(okHandler)

		require.Equal(t, http.StatusOK, serve(h, fromIP("192.168.1.1")).Code)
		require.Equal(t, http.StatusTooManyRequests, serve(h, fromIP("192.168.1.1")).Code)
		require.Equal(t, http.StatusOK, serve(h, fromIP("192.168.1.2")).Code)
	})

	t.Run("tokens refill over the window", func(t *testing.T) {
		clock := &manualClock{t: time.Unix(1_700_000_000, 0)}
		h := limitByIP(cfg, httpx.WithRateLimitClock(clock.Now))(okHandler)

		for range 3 {
			require.Equal(t, http.StatusOK, serve(h, fromIP("192.168.1.1")).Code)
		}
		rec := serve(h, fromIP("192.168.1.1"))
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.Equal(t, "20", rec.Header().Get("Retry-After"), "one token every 20s")

		clock.Advance(21 * time.Second)
		require.Equal(t, http.StatusOK, serve(h, fromIP("192.168.1.1")).Code)
		require.Equal(t, http.StatusTooManyRequests, serve(h, fromIP("192.168.1.1")).Code)
	})

	t.Run("idle keys start over", func(t *testing.T) {
		clock := &manualClock{t: time.Unix(1_700_000_000, 0)}
		h := limitByIP(cfg, httpx.WithRateLimitClock(clock.Now))(okHandler)

		for range 3 {
			serve(h, fromIP("192.168.1.1"))
		}
		clock.Advance(2 * time.Minute)

		for i := range 3 {
			require.Equal(t, http.StatusOK, serve(h, fromIP("192.168.1.1")).Code, "request %d", i+1)
		}
	})

	t.Run("empty key is not limited", func(t *testing.T) {
		h := httpx.RateLimitMiddleware(
			httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute},
			func(*http.Request) string { return "" },
		)(okHandler)

		for range 3 {
			require.Equal(t, http.StatusOK, serve(h, fromIP("192.168.1.1")).Code)
		}
	})

	t.Run("disabled config passes through", func(t *testing.T) {
		h := limitByIP(httpx.RateLimitConfig{})(okHandler)

		for range 50 {
			require.Equal(t, http.StatusOK, serve(h, fromIP("192.168.1.1")).Code)
		}
	})

	t.Run("on limited hook", func(t *testing.T) {
		var limited []string
		h := limitByIP(
			httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute},
			httpx.OnLimited(func(r *http.Request) { limited = append(limited, r.URL.Path) }),
		)(okHandler)

		serve(h, fromIP("192.168.1.1"))
		serve(h, fromIP("192.168.1.1"))
		require.Equal(t, []string{"/"}, limited)
	})
}

func TestLimitByClientAndField(t *testing.T) {
	h := httpx.LimitByClientAndField(httpx.RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute}, httpx.IPKeyExtractor, "email")(okHandler)

	for range 2 {
		require.Equal(t, http.StatusOK, serve(h, jsonRequest(`{"email":"alice@example.com"}`)).Code)
	}
	require.Equal(t, http.StatusTooManyRequests, serve(h, jsonRequest(`{"email":"ALICE@example.com"}`)).Code)
	require.Equal(t, http.StatusOK, serve(h, jsonRequest(`{"email":"bob@example.com"}`)).Code)
}

func TestRateLimitResponse(t *testing.T) {
	h := limitByIP(httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute})(okHandler)

	serve(h, fromIP("192.168.1.1"))
	rec := serve(h, fromIP("192.168.1.1"))

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "1m0s", rec.Header().Get("X-RateLimit-Window"))
	require.Contains(t, rec.Body.String(), `"error":"rate_limit_exceeded"`)
}

func TestDefaultRateLimits(t *testing.T) {
	limits := httpx.DefaultRateLimits()

	for name, cfg := range map[string]httpx.RateLimitConfig{
		"strict":   limits.Strict,
		"moderate": limits.Moderate,
		"lenient":  limits.Lenient,
	} {
		require.True(t, cfg.Enabled(), name)
	}
	require.Less(t, limits.Strict.RequestsPerWindow, limits.Moderate.RequestsPerWindow)
	require.Less(t, limits.Moderate.RequestsPerWindow, limits.Lenient.RequestsPerWindow)
}

func BenchmarkRateLimitManyIPs(b *testing.B) {
	h := limitByIP(httpx.RateLimitConfig{RequestsPerWindow: 1_000_000, Window: time.Minute, Burst: 1000})(okHandler)

	for i := 0; b.Loop(); i++ {
		serve(h, fromIP(fmt.Sprintf("192.168.%d.%d", i%255, (i/255)%255)))
	}
}
