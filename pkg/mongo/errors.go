package mongo

import "errors"

var (
	// ErrEmptyConnectionURL is returned by New when MONGODB_URL is unset.
	ErrEmptyConnectionURL = errors.New("mongo: empty connection url")
	// ErrConnect means no connect and ping attempt succeeded.
	ErrConnect           = errors.New("mongo: connect failed")
	ErrHealthcheckFailed = errors.New("mongo: healthcheck failed")
)
