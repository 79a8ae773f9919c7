//go:generate swag init -g router.go -d ./,../../../pkg/authsdk,../../../pkg/jwtx -o ../../../api/auth --packageName auth --outputTypes go

package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/schoolgate/internal/auth/domain"
	"github.com/aussiebroadwan/schoolgate/internal/auth/metrics"
	"github.com/aussiebroadwan/schoolgate/internal/auth/service"
	"github.com/aussiebroadwan/schoolgate/internal/auth/store"
	"github.com/aussiebroadwan/schoolgate/pkg/httpx"
	"github.com/aussiebroadwan/schoolgate/pkg/jwtx"
	"github.com/aussiebroadwan/schoolgate/pkg/slogx"

	_ "github.com/aussiebroadwan/schoolgate/api/auth" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Pinger is a dependency that /readyz checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	Credentials *service.CredentialVerifier
	Sessions    *service.SessionIssuer
	Resets      *service.ResetTokenService
	Metrics     *metrics.Metrics

	// Throttle is the Redis reset throttle; nil when Redis is not configured.
	Throttle Pinger

	// AdminToken guards the internal activation route; empty disables it.
	AdminToken string
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerLogin()
	r.registerSession()
	r.registerPassword()
	r.registerActivation()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Schoolgate Authentication Service API
//	@version		0.1.0
//	@description	Credential authentication for staff, parents and students.
//	@description
//	@description				Sessions are EdDSA-signed JWTs verifiable with the JWKS endpoint.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/schoolgate
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
//	@description				Session token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerLogin() {
	h := &LoginHandler{Credentials: r.Credentials, Sessions: r.Sessions}

	// POST /login - lenient by IP since a school's staff share one NAT
	// address, moderate by IP + identifier. The identifier bucket must stay
	// well above the lockout threshold so a locked user sees account_locked
	// rather than a 429.
	r.Mux.Handle("POST /v1/login",
		httpx.Chain(h,
			httpx.RateLimitByIP(httpx.LenientLimit),
			httpx.RateLimitByIPAndJSONField(httpx.ModerateLimit, "identifier"),
		),
	)
}

func (r *Router) registerSession() {
	h := &SessionHandler{Sessions: r.Sessions}

	r.Mux.Handle("GET /v1/session",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByAccount(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("POST /v1/session/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByAccount(httpx.ModerateLimit),
		),
	)

	// GET /jwks.json - public endpoint with high limit
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

func (r *Router) registerPassword() {
	h := &PasswordHandler{Resets: r.Resets}

	r.Mux.Handle("POST /v1/password/forgot",
		httpx.Chain(http.HandlerFunc(h.HandleForgot),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/password/reset",
		httpx.Chain(http.HandlerFunc(h.HandleReset),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerActivation() {
	h := &ActivationHandler{Resets: r.Resets}

	// Service-to-service, for the admissions workflow.
	r.Mux.Handle("POST /v1/internal/accounts/{id}/activation",
		httpx.Chain(h,
			httpx.RequireStaticToken(r.AdminToken),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// Same operation for a signed-in school administrator.
	r.Mux.Handle("POST /v1/accounts/{id}/activation",
		httpx.Chain(h,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireAnyRole(string(domain.RoleSuperAdmin), string(domain.RoleSchoolAdmin)),
			httpx.RateLimitByAccount(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys, r.Throttle),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	if r.Metrics != nil {
		r.Mux.Handle("GET /metrics", r.Metrics.Handler())
	}
}
