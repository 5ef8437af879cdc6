package httpserver

import "errors"

var (
	// ErrStart wraps listen and serve failures returned by Run.
	ErrStart = errors.New("httpserver: start failed")
	// ErrShutdown wraps failures to drain connections within the shutdown timeout.
	ErrShutdown = errors.New("httpserver: graceful shutdown failed")
)
