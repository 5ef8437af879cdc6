// Package memstore keeps accounts in process memory. It backs tests and
// single-instance development setups.
package memstore

import (
	"bytes"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/codeai/svc/account"
)

// Store is a mutex-guarded account.Storage. Accounts are copied on the way
// in and out, so callers never share memory with the store.
type Store struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*account.Account
	byEmail map[string]uuid.UUID
	byToken map[string]uuid.UUID
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		byID:    make(map[uuid.UUID]*account.Account),
		byEmail: make(map[string]uuid.UUID),
		byToken: make(map[string]uuid.UUID),
	}
}

func (s *Store) Create(_ context.Context, acc *account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[acc.Email]; ok {
		return account.ErrEmailAlreadyExists
	}
	c := clone(acc)
	s.byID[c.ID] = c
	s.byEmail[c.Email] = c.ID
	if c.ResetTokenHash != "" {
		s.byToken[c.ResetTokenHash] = c.ID
	}
	return nil
}

func (s *Store) GetByID(_ context.Context, id uuid.UUID) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.byID[id]
	if !ok {
		return nil, account.ErrAccountNotFound
	}
	return clone(acc), nil
}

func (s *Store) GetByEmail(_ context.Context, email string) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, account.ErrAccountNotFound
	}
	return clone(s.byID[id]), nil
}

func (s *Store) UpdateProfile(_ context.Context, id uuid.UUID, upd account.ProfileUpdate) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.byID[id]
	if !ok {
		return nil, account.ErrAccountNotFound
	}
	if upd.Name != nil {
		acc.Name = *upd.Name
	}
	if upd.Avatar != nil {
		acc.Avatar = *upd.Avatar
	}
	acc.UpdatedAt = upd.UpdatedAt
	return clone(acc), nil
}

func (s *Store) UpdatePasswordCAS(_ context.Context, id uuid.UUID, oldHash, newHash []byte, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.byID[id]
	if !ok {
		return account.ErrAccountNotFound
	}
	if !bytes.Equal(acc.PasswordHash, oldHash) {
		return account.ErrPasswordChanged
	}
	acc.PasswordHash = bytes.Clone(newHash)
	acc.UpdatedAt = at
	return nil
}

func (s *Store) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.byID[id]
	if !ok {
		return account.ErrAccountNotFound
	}
	delete(s.byID, id)
	delete(s.byEmail, acc.Email)
	if acc.ResetTokenHash != "" {
		delete(s.byToken, acc.ResetTokenHash)
	}
	return nil
}

func (s *Store) SetResetToken(_ context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.byID[id]
	if !ok {
		return account.ErrAccountNotFound
	}
	if acc.ResetTokenHash != "" {
		delete(s.byToken, acc.ResetTokenHash)
	}
	acc.ResetTokenHash = tokenHash
	acc.ResetTokenExpiresAt = expiresAt
	s.byToken[tokenHash] = id
	return nil
}

func (s *Store) ConsumeResetToken(_ context.Context, tokenHash string, now time.Time, newPasswordHash []byte) (*account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byToken[tokenHash]
	if !ok {
		return nil, account.ErrInvalidResetToken
	}
	acc := s.byID[id]
	if !acc.ResetTokenExpiresAt.After(now) {
		return nil, account.ErrInvalidResetToken
	}

	delete(s.byToken, tokenHash)
	acc.PasswordHash = bytes.Clone(newPasswordHash)
	acc.ResetTokenHash = ""
	acc.ResetTokenExpiresAt = time.Time{}
	acc.UpdatedAt = now
	return clone(acc), nil
}

// Len returns the number of stored accounts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func clone(a *account.Account) *account.Account {
	c := *a
	c.PasswordHash = bytes.Clone(a.PasswordHash)
	c.ReviewHistory = slices.Clone(a.ReviewHistory)
	for i := range c.ReviewHistory {
		c.ReviewHistory[i].Result = maps.Clone(c.ReviewHistory[i].Result)
	}
	return &c
}

var _ account.Storage = (*Store)(nil)
