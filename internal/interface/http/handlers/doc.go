// Package handlers contains HTTP handler interfaces, implementations, and middleware.
//
// This package provides:
//   - Health check interfaces and implementations
//   - Admin key authentication against a bcrypt hash
//   - Reusable middleware components
//
// # Health Checks
//
// The HealthChecker interface allows registering multiple named health checks
// that are executed in parallel:
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddCheck("postgres", handlers.NewDatabaseCheck(db))
//	checker.AddNonCriticalCheck("redis", handlers.NewCacheCheck(cache))
//
//	status := checker.Check(ctx)
//	if !status.Healthy {
//	    log.Printf("Health check failed: %s", status.Message)
//	}
//
// The counter store is registered as non-critical: with it down, events
// still commit to the log and reads fall back to replay, so readiness is
// preserved while health reports the degradation.
//
// # Middleware
//
// The package provides several reusable middleware components:
//
//	// Admin key authentication (bcrypt hash in config, never the key)
//	auth := handlers.NewAdminKeyAuth("X-API-Key", cfg.AdminKeyHash)
//	protected := auth.Middleware(reconcileHandler)
//
//	// Request timeout
//	withTimeout := handlers.TimeoutMiddleware(30 * time.Second)(myHandler)
//
//	// Chain multiple middleware
//	handler := handlers.ChainHandler(
//	    myHandler,
//	    handlers.SecurityHeadersMiddleware,
//	    handlers.NoCacheMiddleware,
//	    auth.Middleware,
//	)
package handlers
