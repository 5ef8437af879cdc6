package email

import "errors"

var (
	ErrSendFailed      = errors.New("email: send failed")
	ErrInvalidConfig   = errors.New("email: invalid config")
	ErrUnknownDriver   = errors.New("email: unknown driver")
	ErrUnknownTemplate = errors.New("email: unknown template")
)
