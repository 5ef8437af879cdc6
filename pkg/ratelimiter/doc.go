// Package ratelimiter implements token bucket rate limiting for HTTP routes.
//
// A Bucket holds the limit (capacity, refill rate and interval) and delegates
// state to a Store. MemoryStore serves a single instance; RedisStore runs the
// same algorithm as a Lua script so several instances share one budget.
//
//	store := ratelimiter.NewMemoryStore()
//	bucket, err := ratelimiter.NewBucket(store, ratelimiter.Config{
//	    Capacity: 10, RefillRate: 1, RefillInterval: 6 * time.Second,
//	})
//	r.With(ratelimiter.Middleware(bucket, ratelimiter.WithScope("login"))).Post("/login", h)
//
// Denied requests get 429 with Retry-After and X-RateLimit-* headers. Denials
// do not consume tokens.
package ratelimiter
