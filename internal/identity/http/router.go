package http

import (
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/edoras/internal/identity/health"
	"github.com/aussiebroadwan/edoras/internal/identity/service"
	"github.com/aussiebroadwan/edoras/pkg/httpx"
	"github.com/aussiebroadwan/edoras/pkg/slogx"

	_ "github.com/aussiebroadwan/edoras/api/identity" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// APIPrefix is the mount point of every route.
const APIPrefix = "/api/v1"

// Limits are the rate limit profiles applied per route group.
type Limits struct {
	Strict   httpx.RateLimit // register, login
	Moderate httpx.RateLimit // authenticated account routes, health
}

// DefaultLimits are used when a profile is left zero in Limits.
var DefaultLimits = Limits{Strict: httpx.StrictLimit, Moderate: httpx.ModerateLimit}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	logger *slog.Logger
	limits Limits

	AuthService    *service.AuthService
	AccountService *service.AccountService
	Health         *health.Aggregator
}

func NewRouter(logger *slog.Logger, limits Limits) *Router {
	if limits.Strict == (httpx.RateLimit{}) {
		limits.Strict = DefaultLimits.Strict
	}
	if limits.Moderate == (httpx.RateLimit{}) {
		limits.Moderate = DefaultLimits.Moderate
	}

	r := &Router{
		Mux:    http.NewServeMux(),
		logger: logger,
		limits: limits,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerUsers()
	r.registerHealth()

	r.Mux.Handle("GET "+APIPrefix+"/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Edoras Identity API
//	@version		1.0.0
//	@description	Account registration, login and self-service profile management.
//	@description
//	@description				Session tokens are HS256 signed JWTs carrying only the identity id.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/edoras
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/api/v1
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Session token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{AuthService: r.AuthService}

	// Credential endpoints - strict limit by IP + email to slow brute force
	byIPAndEmail := httpx.CompositeKeyExtractor("|", httpx.IPKeyExtractor, httpx.JSONFieldKeyExtractor("email"))

	r.Mux.Handle("POST "+APIPrefix+"/auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitMiddleware(r.limits.Strict, byIPAndEmail),
		),
	)
	r.Mux.Handle("POST "+APIPrefix+"/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitMiddleware(r.limits.Strict, byIPAndEmail),
		),
	)
}

func (r *Router) registerUsers() {
	h := &UsersHandler{AccountService: r.AccountService}

	// One limiter shared by every authenticated route, keyed by identity
	perUser := httpx.NewLimiter(r.limits.Moderate, httpx.SubjectKeyExtractor).Middleware()
	secured := func(fn http.HandlerFunc) http.Handler {
		return httpx.Chain(fn,
			httpx.AuthnMiddleware(r.AuthService, denyAuth),
			perUser,
		)
	}

	r.Mux.Handle("GET "+APIPrefix+"/users/me", secured(h.HandleGetMe))
	r.Mux.Handle("PUT "+APIPrefix+"/users/me", secured(h.HandleUpdateMe))
	r.Mux.Handle("DELETE "+APIPrefix+"/users/me", secured(h.HandleDeleteMe))
	r.Mux.Handle("PUT "+APIPrefix+"/users/me/password", secured(h.HandleChangePassword))
	r.Mux.Handle("GET "+APIPrefix+"/users", secured(h.HandleList))
}

func (r *Router) registerHealth() {
	h := &HealthHandler{Health: r.Health}

	// Monitoring may poll frequently; moderate limit by IP
	perIP := httpx.NewLimiter(r.limits.Moderate, httpx.IPKeyExtractor).Middleware()

	r.Mux.Handle("GET "+APIPrefix+"/health", httpx.Chain(http.HandlerFunc(h.HandleLive), perIP))
	r.Mux.Handle("GET "+APIPrefix+"/health/detailed", httpx.Chain(http.HandlerFunc(h.HandleDetailed), perIP))
	r.Mux.Handle("GET "+APIPrefix+"/health/db", httpx.Chain(http.HandlerFunc(h.HandleDatabase), perIP))
}
