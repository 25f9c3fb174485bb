// Package middleware provides the HTTP middleware in front of the ACL API.
//
// # Middleware Components
//
// RequestID: reuses or assigns X-Request-ID and stores it in the context.
//
// Logging: stores a request-scoped logrus entry in the context and logs
// every completed request.
//
// Recovery: turns handler panics into 500 responses.
//
// UserMiddleware: loads the acting user named by the X-User-Id header set by
// the upstream authentication layer.
//
//	router.Use(middleware.RequestID, middleware.Logging(log), middleware.Recovery(log))
//	router.Use(middleware.NewUserMiddleware(repo, false).Handler)
//
// RateLimitMiddleware: per-user request limits, in memory or shared through
// Redis.
//
// # Rate Limiting
//
// Portal and anonymous: 100 req/min, 10 burst
// Regular users: 1000 req/min, 50 burst
// API users: 5000 req/min, 100 burst
// Admins are limited like regular users; system users are not limited.
package middleware
