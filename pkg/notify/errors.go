package notify

import "errors"

var (
	ErrAlreadyStarted = errors.New("notify: dispatcher already started")
	ErrQueueFull      = errors.New("notify: queue is full")
	ErrClosed         = errors.New("notify: dispatcher is closed")
)
