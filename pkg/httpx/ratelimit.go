package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/quackwell/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig is a token bucket per key: RequestsPerWindow tokens refill
// over Window and at most Burst are spent at once. A zero RequestsPerWindow
// turns limiting off.
type RateLimitConfig struct {
	RequestsPerWindow int           `koanf:"requests"`
	Window            time.Duration `koanf:"window"`
	Burst             int           `koanf:"burst"` // defaults to RequestsPerWindow
}

// Enabled reports whether the config limits anything.
func (c RateLimitConfig) Enabled() bool {
	return c.RequestsPerWindow > 0 && c.Window > 0
}

func (c RateLimitConfig) burst() int {
	if c.Burst > 0 {
		return c.Burst
	}
	return c.RequestsPerWindow
}

// RateLimits are the profiles the route table picks from.
type RateLimits struct {
	Strict   RateLimitConfig `koanf:"strict"`   // credentials: login, register, password reset
	Moderate RateLimitConfig `koanf:"moderate"` // refresh, sign-in redirects, writes
	Lenient  RateLimitConfig `koanf:"lenient"`  // reads and health probes

	// TrustedProxies are the addresses or CIDRs whose forwarding headers are
	// believed. Empty means requests are keyed on the socket peer only.
	TrustedProxies []string `koanf:"trusted_proxies"`
}

// ClientIP returns the extractor for the client address under these limits.
// Entries that do not parse are ignored; ParseTrustedProxies reports them.
func (l RateLimits) ClientIP() KeyExtractor {
	trusted, _ := ParseTrustedProxies(l.TrustedProxies)
	if len(trusted) == 0 {
		return IPKeyExtractor
	}
	return ForwardedIPKeyExtractor(trusted)
}

// ParseTrustedProxies reads addresses and CIDRs. An entry may itself hold a
// comma separated list, as it does when set from the environment.
func ParseTrustedProxies(specs []string) ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	var bad []string
	for _, spec := range specs {
		for _, entry := range strings.Split(spec, ",") {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}
			if p, err := netip.ParsePrefix(entry); err == nil {
				prefixes = append(prefixes, p.Masked())
				continue
			}
			if a, err := netip.ParseAddr(entry); err == nil {
				prefixes = append(prefixes, netip.PrefixFrom(a.Unmap(), a.Unmap().BitLen()))
				continue
			}
			bad = append(bad, entry)
		}
	}
	if len(bad) > 0 {
		return prefixes, fmt.Errorf("httpx: invalid trusted proxy %s", strings.Join(bad, ", "))
	}
	return prefixes, nil
}

// DefaultRateLimits returns the limits used when nothing is configured.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Strict:   RateLimitConfig{RequestsPerWindow: 5, Window: time.Minute, Burst: 5},
		Moderate: RateLimitConfig{RequestsPerWindow: 20, Window: time.Minute, Burst: 20},
		Lenient:  RateLimitConfig{RequestsPerWindow: 100, Window: time.Minute, Burst: 100},
	}
}

// KeyExtractor picks the bucket a request is charged to. An empty key lets
// the request through uncounted.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor keys on the socket peer. Forwarding headers are ignored,
// since any client can send them.
func IPKeyExtractor(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ForwardedIPKeyExtractor believes X-Forwarded-For and X-Real-IP only when
// the socket peer is one of the trusted proxies. X-Forwarded-For is walked
// from the right and the first hop that is not a trusted proxy is the
// client. Requests from any other peer are keyed on the peer.
func ForwardedIPKeyExtractor(trusted []netip.Prefix) KeyExtractor {
	isTrusted := func(s string) bool {
		a, err := netip.ParseAddr(strings.TrimSpace(s))
		if err != nil {
			return false
		}
		a = a.Unmap()
		for _, p := range trusted {
			if p.Contains(a) {
				return true
			}
		}
		return false
	}

	return func(r *http.Request) string {
		peer := IPKeyExtractor(r)
		if !isTrusted(peer) {
			return peer
		}

		if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
			hops := strings.Split(strings.Join(xff, ","), ",")
			client := ""
			for i := len(hops) - 1; i >= 0; i-- {
				hop := strings.TrimSpace(hops[i])
				if _, err := netip.ParseAddr(hop); err != nil {
					break
				}
				client = hop
				if !isTrusted(hop) {
					break
				}
			}
			if client != "" {
				return client
			}
		}
		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			if _, err := netip.ParseAddr(xri); err == nil {
				return xri
			}
		}
		return peer
	}
}

// CombineKeys joins the non-empty keys of several extractors with ":".
func CombineKeys(extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(extractors))
		for _, extract := range extractors {
			if key := extract(r); key != "" {
				parts = append(parts, key)
			}
		}
		return strings.Join(parts, ":")
	}
}

// JSONFieldKeyExtractor keys on a top-level string field of a JSON body,
// lower cased. The body is put back for the handler.
func JSONFieldKeyExtractor(field string) KeyExtractor {
	return func(r *http.Request) string {
		if r.Body == nil {
			return ""
		}

		raw, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes))
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(raw))
		if err != nil {
			return ""
		}

		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return ""
		}
		v, _ := fields[field].(string)
		return strings.ToLower(strings.TrimSpace(v))
	}
}

// RateLimitOption adjusts a limiter built by RateLimitMiddleware.
type RateLimitOption func(*buckets)

// OnLimited runs fn for every rejected request.
func OnLimited(fn func(*http.Request)) RateLimitOption {
	return func(b *buckets) { b.onLimited = fn }
}

// WithRateLimitClock replaces time.Now.
func WithRateLimitClock(now func() time.Time) RateLimitOption {
	return func(b *buckets) { b.now = now }
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// buckets holds one limiter per key. Keys idle long enough for their bucket
// to refill are swept, since a full bucket is the same as a new one.
type buckets struct {
	mu        sync.Mutex
	byKey     map[string]*bucket
	limit     rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time

	now       func() time.Time
	onLimited func(*http.Request)
}

func newBuckets(cfg RateLimitConfig, opts ...RateLimitOption) *buckets {
	b := &buckets{
		byKey: make(map[string]*bucket),
		limit: rate.Limit(float64(cfg.RequestsPerWindow) / cfg.Window.Seconds()),
		burst: cfg.burst(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}

	refills := math.Ceil(float64(b.burst) / float64(cfg.RequestsPerWindow))
	b.idle = time.Duration(max(refills, 1)) * cfg.Window
	b.lastSweep = b.now()
	return b
}

// take spends one token for key. When the bucket is empty it reports how
// many whole seconds until the next token.
func (b *buckets) take(key string) (ok bool, retryAfter int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	if now.Sub(b.lastSweep) >= b.idle {
		for k, bk := range b.byKey {
			if now.Sub(bk.lastSeen) >= b.idle {
				delete(b.byKey, k)
			}
		}
		b.lastSweep = now
	}

	bk, found := b.byKey[key]
	if !found {
		bk = &bucket{limiter: rate.NewLimiter(b.limit, b.burst)}
		b.byKey[key] = bk
	}
	bk.lastSeen = now

	if bk.limiter.AllowN(now, 1) {
		return true, 0
	}

	missing := 1 - bk.limiter.TokensAt(now)
	wait := int(math.Ceil(missing / float64(b.limit)))
	return false, max(wait, 1)
}

// RateLimitMiddleware rejects requests with 429 once their key has spent its
// bucket. A disabled config returns a pass through middleware.
func RateLimitMiddleware(cfg RateLimitConfig, key KeyExtractor, opts ...RateLimitOption) Middleware {
	if !cfg.Enabled() {
		return func(next http.Handler) http.Handler { return next }
	}
	b := newBuckets(cfg, opts...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := slogx.FromContext(r.Context())

			k := key(r)
			if k == "" {
				log.Warn("rate limit: no key for request, allowing")
				next.ServeHTTP(w, r)
				return
			}

			ok, retryAfter := b.take(k)
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Window", cfg.Window.String())

			log.Warn("rate limit exceeded", "key", k, "path", r.URL.Path, "retry_after", retryAfter)
			if b.onLimited != nil {
				b.onLimited(r)
			}

			WriteJSON(w, http.StatusTooManyRequests, map[string]string{
				"error":             "rate_limit_exceeded",
				"error_description": "too many requests, try again later",
			})
		})
	}
}

// LimitByClient limits per client address, as picked by clientIP.
func LimitByClient(cfg RateLimitConfig, clientIP KeyExtractor, opts ...RateLimitOption) Middleware {
	return RateLimitMiddleware(cfg, clientIP, opts...)
}

// LimitByClientAndField limits per client address, as picked by clientIP,
// and JSON body field. Login and forgot-password key on the email.
func LimitByClientAndField(cfg RateLimitConfig, clientIP KeyExtractor, field string, opts ...RateLimitOption) Middleware {
	return RateLimitMiddleware(cfg, CombineKeys(clientIP, JSONFieldKeyExtractor(field)), opts...)
}
