// Package middleware provides the HTTP middleware that sits in front of the
// portal handlers: bearer-token authentication, role gates and a
// Redis-backed rate limiter for the unauthenticated auth endpoints.
//
//	authMW := middleware.NewAuthMiddleware(tokens)
//	protected := router.NewRoute().Subrouter()
//	protected.Use(authMW.Handler)
//
//	admin := protected.NewRoute().Subrouter()
//	admin.Use(middleware.RequireRoles(policy.RoleSuperAdmin, policy.RoleCampusAdmin, policy.RoleAdmin))
//
//	limiter := middleware.NewRateLimiter(redisClient, middleware.LoginRateLimitConfig(), "ratelimit:login")
//	router.Handle("/auth/login", middleware.RateLimit(limiter, logger)(loginHandler))
package middleware
