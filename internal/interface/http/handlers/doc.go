// Package handlers contains the reusable pieces of the gradebook HTTP API
// that do not depend on the application layer: health checks, middleware,
// request rate limiting and Prometheus instrumentation.
//
// # Health Checks
//
// Checks run in parallel, each under its own timeout. A failing required
// check marks the service unhealthy; a failing optional check (the Redis
// cache) only marks it degraded:
//
//	checker := handlers.NewCompositeHealthChecker("1.0.0")
//	checker.AddCheck("database", handlers.NewDatabaseCheck(store))
//	checker.AddOptionalCheck("cache", handlers.NewCacheCheck(cache))
//
// # Middleware
//
// Middleware are plain func(http.Handler) http.Handler values and compose
// with Chain:
//
//	h := handlers.ChainHandler(mux,
//		handlers.SecurityHeadersMiddleware,
//		handlers.RequestSizeLimitMiddleware(1<<20),
//	)
package handlers
