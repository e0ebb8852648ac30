// Package api assembles the HTTP API of the publication portal.
//
// # Overview
//
// The server mounts every domain handler group on a single gorilla/mux
// router and wraps it in the shared middleware stack:
//
//   - Public routes: login and the password reset flow, each behind a
//     Redis-backed rate limiter
//   - Authenticated routes: the current user, user management, publications
//     and the college hierarchy lookups that drive the forms
//
// # Usage
//
//	server := api.NewServer(api.Deps{
//		Engine:       engine,
//		Tokens:       tokens,
//		Accounts:     userStore,
//		Users:        userService,
//		Publications: publicationService,
//		OTP:          otpService,
//		Redis:        redisClient,
//		Logger:       logger,
//	})
//	http.ListenAndServe(":8080", server.Handler())
//
// Handler returns the router wrapped in request ids, access logging, panic
// recovery, body limits, CORS and OpenTelemetry spans. ServeHTTP serves the
// bare router, which is what the tests use.
//
// # Route groups
//
// Additional handler groups can be mounted on the authenticated router
// through RegisterRoutes with any RouteRegistrar.
package api
