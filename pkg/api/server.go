package api

import (
	"net/http"
	"net/netip"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/researchportal/pubportal/pkg/audit"
	"github.com/researchportal/pubportal/pkg/auth"
	"github.com/researchportal/pubportal/pkg/httputil"
	"github.com/researchportal/pubportal/pkg/middleware"
	"github.com/researchportal/pubportal/pkg/observability"
	"github.com/researchportal/pubportal/pkg/otp"
	"github.com/researchportal/pubportal/pkg/policy"
	"github.com/researchportal/pubportal/pkg/publications"
	"github.com/researchportal/pubportal/pkg/users"
)

// defaultMaxBodyBytes bounds request bodies when Deps.MaxBodyBytes is unset
const defaultMaxBodyBytes = 2 << 20

// Deps are the collaborators the server routes to. Redis, Audit, Metrics
// and Logger are optional.
type Deps struct {
	Engine       *policy.Engine
	Tokens       *auth.TokenManager
	Accounts     auth.AccountStore
	Users        *users.Service
	Publications *publications.Service
	OTP          *otp.Service

	Redis   *redis.Client
	Audit   audit.Logger
	Metrics *observability.Metrics
	Logger  *observability.Logger

	CORSOrigins    []string
	MaxBodyBytes   int64
	TrustedProxies []netip.Prefix
}

// Server represents our API server
type Server struct {
	deps    Deps
	router  *mux.Router
	private *mux.Router
	logger  *observability.Logger
}

// NewServer creates a new API server
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = observability.NopLogger()
	}
	if deps.Audit == nil {
		deps.Audit = audit.NopLogger{}
	}
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = defaultMaxBodyBytes
	}

	s := &Server{
		deps:   deps,
		router: mux.NewRouter(),
		logger: deps.Logger,
	}
	s.setupRoutes()
	return s
}

// limiter returns a rate limiting middleware, or nil without Redis
func (s *Server) limiter(config middleware.RateLimitConfig, prefix string) func(http.Handler) http.Handler {
	if s.deps.Redis == nil {
		return nil
	}
	rl := middleware.NewRateLimiter(s.deps.Redis, config, prefix).TrustProxies(s.deps.TrustedProxies)
	return middleware.RateLimit(rl, s.logger)
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	if s.deps.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.deps.Metrics))
	}
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteNotFound(w, "route not found")
	})

	authHandlers := auth.NewHandlers(s.deps.Accounts, s.deps.Tokens, s.deps.Audit)

	// Public routes
	public := s.router.NewRoute().Subrouter()
	if limit := s.limiter(middleware.LoginRateLimitConfig(), "ratelimit:login"); limit != nil {
		public.Use(limit)
	}
	authHandlers.RegisterPublicRoutes(public)

	if s.deps.OTP != nil {
		otpHandlers := otp.NewHandlers(s.deps.OTP, s.limiter(middleware.OTPRateLimitConfig(), "ratelimit:otp"))
		otpHandlers.RegisterRoutes(s.router)
	}

	// Authenticated routes
	s.private = s.router.NewRoute().Subrouter()
	s.private.Use(middleware.NewAuthMiddleware(s.deps.Tokens).Handler)

	authHandlers.RegisterRoutes(s.private)
	s.RegisterRoutes(NewScopeHandlers(s.deps.Engine))
	if s.deps.Users != nil {
		s.RegisterRoutes(users.NewHandlers(s.deps.Users))
	}
	if s.deps.Publications != nil {
		s.RegisterRoutes(publications.NewHandlers(s.deps.Publications))
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the router wrapped in the production middleware stack
func (s *Server) Handler() http.Handler {
	chain := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.logger),
		httputil.RecoveryMiddleware(s.logger),
		httputil.MaxBytesMiddleware(s.deps.MaxBodyBytes),
	)

	c := cors.New(cors.Options{
		AllowedOrigins:   s.deps.CORSOrigins,
		AllowCredentials: true,
		AllowedHeaders:   []string{"Authorization", "Content-Type", httputil.RequestIDHeader},
		ExposedHeaders:   []string{httputil.RequestIDHeader, "Retry-After", "Content-Disposition"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	})

	return otelhttp.NewHandler(c.Handler(chain(s.router)), "pubportal")
}

// RouteRegistrar is an interface for types that can register routes
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// RegisterRoutes registers routes from a RouteRegistrar on the
// authenticated router
func (s *Server) RegisterRoutes(registrar RouteRegistrar) {
	registrar.RegisterRoutes(s.private)
}
