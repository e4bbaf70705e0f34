package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/quackwell/internal/auth/domain"
	"github.com/aussiebroadwan/quackwell/internal/auth/federation"
	"github.com/aussiebroadwan/quackwell/internal/auth/observability"
	"github.com/aussiebroadwan/quackwell/internal/auth/service"
	"github.com/aussiebroadwan/quackwell/internal/auth/store"
	"github.com/aussiebroadwan/quackwell/pkg/httpx"
	"github.com/aussiebroadwan/quackwell/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"

	_ "github.com/aussiebroadwan/quackwell/api/quackwell" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Session cookie names.
const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

var (
	anyone        = []domain.Role{domain.RoleAny}
	authenticated = []domain.Role{domain.RoleClient, domain.RoleAdmin}
	adminsOnly    = []domain.Role{domain.RoleAdmin}
)

// AuthedHandlerFunc is a handler behind the authorizer. id is nil on routes
// open to anyone.
type AuthedHandlerFunc func(w http.ResponseWriter, r *http.Request, id *service.Identity)

// route is one row of the routing table: the roles it requires and how it is
// rate limited.
type route struct {
	pattern string
	roles   []domain.Role
	limit   httpx.Middleware
	handler AuthedHandlerFunc
}

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Auth       *service.AuthService
	Users      *service.UserService
	Todos      *service.TodoService
	Authorizer *service.Authorizer

	// Google sign-in is optional; nil or unconfigured answers 503.
	Google *federation.Google
	State  *federation.StateGuard

	Store    store.Store
	Metrics  *observability.Metrics
	Registry *prometheus.Registry // nil disables /metrics

	Cookies httpx.CookieOptions

	// RateLimits picks the limiter for each route. Zero profiles disable
	// limiting.
	RateLimits httpx.RateLimits

	// FrontendURL receives the browser after Google sign-in. When empty the
	// callback answers with JSON instead.
	FrontendURL string

	// MailState reports the mail relay breaker state for /readyz.
	MailState func() string

	Version string
	Logger  *slog.Logger
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	deps      Deps
	startTime time.Time
}

func NewRouter(deps Deps) *Router {
	r := &Router{
		Mux:       http.NewServeMux(),
		deps:      deps,
		startTime: time.Now(),
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(deps.Logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	auth := &AuthHandler{r}
	google := &GoogleHandler{r}
	users := &UsersHandler{r}
	todos := &TodosHandler{r}

	limits := r.deps.RateLimits
	clientIP := limits.ClientIP()
	strict := httpx.LimitByClient(limits.Strict, clientIP, r.countLimited("strict"))
	moderate := httpx.LimitByClient(limits.Moderate, clientIP, r.countLimited("moderate"))
	lenient := httpx.LimitByClient(limits.Lenient, clientIP, r.countLimited("lenient"))
	strictByEmail := func() httpx.Middleware {
		return httpx.LimitByClientAndField(limits.Strict, clientIP, "email", r.countLimited("strict"))
	}

	routes := []route{
		{"POST /v1/auth/register", anyone, strict, auth.Register},
		{"POST /v1/auth/login", anyone, strictByEmail(), auth.Login},
		{"POST /v1/auth/logout", authenticated, moderate, auth.Logout},
		{"POST /v1/auth/refresh", anyone, moderate, auth.Refresh},
		{"POST /v1/auth/forgot-password", anyone, strictByEmail(), auth.ForgotPassword},
		{"GET /v1/auth/reset-password/{token}", anyone, strict, auth.VerifyResetToken},
		{"POST /v1/auth/reset-password", anyone, strict, auth.ResetPassword},
		{"GET /v1/auth/google", anyone, moderate, google.Start},
		{"GET /v1/auth/google/redirect", anyone, moderate, google.Callback},

		{"GET /v1/users/profile", authenticated, lenient, users.Profile},
		{"PUT /v1/users/profile", authenticated, moderate, users.UpdateProfile},
		{"DELETE /v1/users/profile", authenticated, strict, users.DeleteAccount},
		{"GET /v1/users", adminsOnly, moderate, users.List},

		{"POST /v1/todos", authenticated, moderate, todos.Create},
		{"GET /v1/todos", authenticated, lenient, todos.List},
		{"GET /v1/todos/{id}", authenticated, lenient, todos.Get},
		{"PUT /v1/todos/{id}", authenticated, moderate, todos.Update},
		{"DELETE /v1/todos/{id}", authenticated, moderate, todos.Delete},
	}

	for _, rt := range routes {
		r.Mux.Handle(rt.pattern, httpx.Chain(r.protect(rt.roles, rt.handler),
			r.deps.Metrics.Instrument(rt.pattern),
			rt.limit,
		))
	}

	r.registerSystem()
	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Quackwell API
//	@version		0.1.0
//	@description	Users and todos behind JWT access and refresh tokens.
//	@description
//	@description				Tokens are HS256 signed. Send the access token as a bearer header or rely on the HTTP-only access_token cookie; an expired access token is renewed with the refresh_token cookie.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/quackwell
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// protect is the single enforcement point. Every table route goes through
// it; routes open to anyone pass straight through the authorizer.
func (r *Router) protect(roles []domain.Role, h AuthedHandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		d := r.deps.Authorizer.Authorize(req.Context(), roles, service.PresentedTokens{
			Bearer:        httpx.BearerToken(req),
			AccessCookie:  httpx.CookieValue(req, AccessCookie),
			RefreshCookie: httpx.CookieValue(req, RefreshCookie),
		})

		if d.RenewedAccessToken != "" {
			r.setAccessCookie(w, d.RenewedAccessToken)
		}

		if !d.Allowed {
			writeDenial(w, d.Reason)
			return
		}

		if d.Identity != nil {
			req = req.WithContext(slogx.WithUserID(req.Context(), d.Identity.ID))
		}
		h(w, req, d.Identity)
	})
}

// registerSystem adds the probes, with their own lenient limiter, and an
// unlimited /metrics.
func (r *Router) registerSystem() {
	limits := r.deps.RateLimits
	limit := httpx.LimitByClient(limits.Lenient, limits.ClientIP(), r.countLimited("lenient"))
	r.Mux.Handle("GET /livez", httpx.Chain(LivezHandler(r.startTime, r.deps.Version), limit))
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.deps.Version, r.deps.Store, r.deps.MailState), limit),
	)

	if r.deps.Registry != nil {
		r.Mux.Handle("GET /metrics", observability.Handler(r.deps.Registry))
	}
}

func (r *Router) countLimited(profile string) httpx.RateLimitOption {
	return httpx.OnLimited(func(*http.Request) { r.deps.Metrics.RecordRateLimited(profile) })
}

func (r *Router) setAccessCookie(w http.ResponseWriter, token string) {
	httpx.SetCookie(w, r.deps.Cookies, AccessCookie, token, r.deps.Auth.Access.TTL())
}

func (r *Router) setSessionCookies(w http.ResponseWriter, access, refresh string) {
	r.setAccessCookie(w, access)
	httpx.SetCookie(w, r.deps.Cookies, RefreshCookie, refresh, r.deps.Auth.Refresh.TTL())
}

func (r *Router) clearSessionCookies(w http.ResponseWriter) {
	httpx.ClearCookie(w, r.deps.Cookies, AccessCookie)
	httpx.ClearCookie(w, r.deps.Cookies, RefreshCookie)
}
