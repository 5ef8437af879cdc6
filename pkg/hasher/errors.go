package hasher

import "errors"

var (
	ErrEmptyPassword   = errors.New("hasher: password cannot be empty")
	ErrPasswordTooLong = errors.New("hasher: password exceeds 72 bytes")
	ErrHashFailed      = errors.New("hasher: failed to hash password")
)
