// Package hasher turns plaintext passwords into bcrypt digests and checks
// candidates against them. CPU-heavy work runs under a weighted semaphore so
// a burst of logins cannot occupy more cores than the pool allows.
package hasher

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// DefaultCost matches the cost digests were created with historically.
const DefaultCost = 10

// maxPasswordBytes is the bcrypt input limit.
const maxPasswordBytes = 72

// Config holds hasher settings.
type Config struct {
	Cost     int `env:"BCRYPT_COST" envDefault:"10"`
	PoolSize int `env:"HASHER_POOL_SIZE" envDefault:"0"` // 0 means GOMAXPROCS
}

// Hasher hashes and verifies passwords.
type Hasher struct {
	cost int
	pool *semaphore.Weighted
}

// Option configures a Hasher.
type Option func(*Hasher)

// WithCost overrides the bcrypt cost. Values outside bcrypt's range are ignored.
func WithCost(cost int) Option {
	return func(h *Hasher) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			h.cost = cost
		}
	}
}

// WithPoolSize limits how many hash operations run at once.
func WithPoolSize(n int) Option {
	return func(h *Hasher) {
		if n > 0 {
			h.pool = semaphore.NewWeighted(int64(n))
		}
	}
}

// New creates a Hasher with DefaultCost and a pool sized to GOMAXPROCS.
func New(opts ...Option) *Hasher {
	h := &Hasher{
		cost: DefaultCost,
		pool: semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0))),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewFromConfig creates a Hasher from Config.
func NewFromConfig(cfg Config) *Hasher {
	return New(WithCost(cfg.Cost), WithPoolSize(cfg.PoolSize))
}

// Hash returns a bcrypt digest of plaintext. The salt and cost are encoded in the digest.
func (h *Hasher) Hash(ctx context.Context, plaintext string) ([]byte, error) {
	if err := checkInput(plaintext); err != nil {
		return nil, err
	}

	if err := h.pool.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer h.pool.Release(1)

	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHashFailed, err)
	}
	return digest, nil
}

// Verify reports whether plaintext matches digest. A malformed digest counts
// as a mismatch. Only input validation and context errors are returned.
func (h *Hasher) Verify(ctx context.Context, plaintext string, digest []byte) (bool, error) {
	if err := checkInput(plaintext); err != nil {
		return false, err
	}
	if len(digest) == 0 {
		return false, nil
	}

	if err := h.pool.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.pool.Release(1)

	// Mismatch and malformed digests both land here.
	if err := bcrypt.CompareHashAndPassword(digest, []byte(plaintext)); err != nil {
		return false, nil
	}
	return true, nil
}

// Cost returns the cost new digests are created with.
func (h *Hasher) Cost() int {
	return h.cost
}

func checkInput(plaintext string) error {
	if plaintext == "" {
		return ErrEmptyPassword
	}
	if len(plaintext) > maxPasswordBytes {
		return ErrPasswordTooLong
	}
	return nil
}
