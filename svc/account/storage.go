package account

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Storage persists accounts.
//
// Lookups return ErrAccountNotFound for missing records and Create returns
// ErrEmailAlreadyExists on a duplicate email. Any other error is treated as
// the store being unavailable.
type Storage interface {
	Create(ctx context.Context, acc *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, upd ProfileUpdate) (*Account, error)

	// UpdatePasswordCAS replaces the hash only while it still equals oldHash.
	// A mismatch returns ErrPasswordChanged.
	UpdatePasswordCAS(ctx context.Context, id uuid.UUID, oldHash, newHash []byte, at time.Time) error

	// Delete removes the account and its review history.
	Delete(ctx context.Context, id uuid.UUID) error

	// SetResetToken overwrites any previous reset token of the account.
	SetResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error

	// ConsumeResetToken finds the account whose token hash equals tokenHash
	// and has not expired at now, sets newPasswordHash and clears the token
	// in a single atomic update. No match returns ErrInvalidResetToken.
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, newPasswordHash []byte) (*Account, error)
}
