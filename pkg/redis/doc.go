// Package redis connects to Redis with retries. Redis is optional: it backs
// the shared rate limiter store when REDIS_URL is set.
package redis
