// Package middleware provides the gateway's HTTP middleware.
//
// Middleware stack includes:
//   - CORS: Cross-origin resource sharing with configurable origins
//   - RateLimit: Per-IP token bucket rate limiting with idle cleanup
//   - GlobalRateLimit: one bucket shared by every client (Limit picks by config)
//   - Logger: Request logging through zap
//
// Rate Limiting:
//   - Token bucket per client IP
//   - Route patterns in Exempt bypass the limiter (the result callback by default)
//   - Rejections use the gateway envelope with code RATE_LIMITED
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.Limit(middleware.DefaultRateLimitConfig()))
package middleware
