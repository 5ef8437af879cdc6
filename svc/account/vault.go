package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrymomot/codeai/pkg/resettoken"
)

// Vault issues and redeems password reset tokens. Only token hashes reach
// the storage.
type Vault struct {
	storage Storage
	ttl     time.Duration
	now     func() time.Time
}

// NewVault creates a Vault. A non-positive ttl falls back to resettoken.DefaultTTL.
func NewVault(storage Storage, ttl time.Duration, now func() time.Time) *Vault {
	if ttl <= 0 {
		ttl = resettoken.DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Vault{storage: storage, ttl: ttl, now: now}
}

// TTL returns the validity window of issued tokens.
func (v *Vault) TTL() time.Duration {
	return v.ttl
}

// Issue stores a fresh token for acc, superseding any previous one, and
// returns the plaintext.
func (v *Vault) Issue(ctx context.Context, acc *Account) (string, time.Time, error) {
	plaintext, hash, err := resettoken.Generate()
	if err != nil {
		return "", time.Time{}, err
	}

	expiresAt := v.now().Add(v.ttl)
	if err := v.storage.SetResetToken(ctx, acc.ID, hash, expiresAt); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return "", time.Time{}, err
		}
		return "", time.Time{}, fmt.Errorf("%w: store reset token: %w", ErrDependency, err)
	}
	return plaintext, expiresAt, nil
}

// Consume redeems plaintext, setting newPasswordHash on the owning account.
// Wrong, expired and already used tokens all yield ErrInvalidResetToken.
func (v *Vault) Consume(ctx context.Context, plaintext string, newPasswordHash []byte) (*Account, error) {
	if !resettoken.WellFormed(plaintext) {
		return nil, ErrInvalidResetToken
	}

	acc, err := v.storage.ConsumeResetToken(ctx, resettoken.Hash(plaintext), v.now(), newPasswordHash)
	if err != nil {
		if errors.Is(err, ErrInvalidResetToken) {
			return nil, ErrInvalidResetToken
		}
		return nil, fmt.Errorf("%w: consume reset token: %w", ErrDependency, err)
	}
	return acc, nil
}
