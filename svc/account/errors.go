package account

import (
	"errors"

	"github.com/dmitrymomot/codeai/pkg/validator"
)

// Authentication errors. Messages never say which part of a credential
// was wrong.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidResetToken  = errors.New("invalid or expired token")
	ErrInvalidIdentity    = errors.New("invalid identity assertion")
)

var (
	ErrIncorrectPassword  = errors.New("current password is incorrect")
	ErrEmailAlreadyExists = errors.New("email already exists")
	ErrAccountNotFound    = errors.New("account not found")
	ErrDependency         = errors.New("dependency unavailable")
)

// ErrPasswordChanged is returned by Storage.UpdatePasswordCAS when the stored
// hash no longer matches the expected one.
var ErrPasswordChanged = errors.New("password changed concurrently")

// Kind classifies errors returned by Service.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindForbidden
	KindConflict
	KindNotFound
	KindDependency
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindDependency:
		return "dependency"
	default:
		return "internal"
	}
}

// KindOf reports the class of err. Unknown errors are KindInternal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case validator.IsValidationError(err):
		return KindValidation
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrUnauthorized),
		errors.Is(err, ErrInvalidResetToken),
		errors.Is(err, ErrInvalidIdentity):
		return KindAuthentication
	case errors.Is(err, ErrIncorrectPassword):
		return KindForbidden
	case errors.Is(err, ErrEmailAlreadyExists):
		return KindConflict
	case errors.Is(err, ErrAccountNotFound):
		return KindNotFound
	case errors.Is(err, ErrDependency):
		return KindDependency
	default:
		return KindInternal
	}
}
