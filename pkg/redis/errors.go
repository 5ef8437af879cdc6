package redis

import "errors"

var (
	// ErrEmptyConnectionURL is returned by Connect when REDIS_URL is unset.
	ErrEmptyConnectionURL = errors.New("redis: empty connection url")
	ErrInvalidURL         = errors.New("redis: invalid connection url")
	// ErrNotReady means no ping succeeded before the retries ran out.
	ErrNotReady          = errors.New("redis: server not ready")
	ErrHealthcheckFailed = errors.New("redis: healthcheck failed")
)
