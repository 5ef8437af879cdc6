package googleid

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/codeai/pkg/logger"
	"github.com/dmitrymomot/codeai/pkg/metrics"
)

const (
	defaultKeysTTL = time.Hour
	// minRefreshInterval throttles forced refreshes triggered by unknown key ids.
	minRefreshInterval = time.Minute
	breakerName        = "google-jwks"
)

type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwksDocument struct {
	Keys []jwk `json:"keys"`
}

type fetchResult struct {
	keys   map[string]*rsa.PublicKey
	maxAge time.Duration
}

// keySet caches Google's public keys by kid.
type keySet struct {
	url     string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[fetchResult]
	group   singleflight.Group
	now     func() time.Time
	logger  *slog.Logger

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	expiresAt time.Time
	fetchedAt time.Time
}

func newKeySet(url string, client *http.Client, now func() time.Time, log *slog.Logger, m *metrics.Metrics) *keySet {
	ks := &keySet{
		url:    url,
		client: client,
		now:    now,
		logger: log,
	}

	ks.breaker = gobreaker.NewCircuitBreaker[fetchResult](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
				logger.Component("googleid"),
			)
			m.BreakerState(name, to)
		},
	})
	m.BreakerState(breakerName, gobreaker.StateClosed)

	return ks
}

// key returns the public key for kid, fetching the key set when the cache is
// stale or does not know kid.
func (ks *keySet) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	ks.mu.RLock()
	key, ok := ks.keys[kid]
	fresh := ks.now().Before(ks.expiresAt)
	recent := ks.now().Sub(ks.fetchedAt) < minRefreshInterval
	ks.mu.RUnlock()

	if ok && fresh {
		return key, nil
	}
	// Unknown kid on a fresh cache: refetch only if the last fetch is old enough.
	if fresh && recent {
		return nil, ErrInvalidIdentityToken
	}

	if err := ks.refresh(ctx); err != nil {
		return nil, err
	}

	ks.mu.RLock()
	key, ok = ks.keys[kid]
	ks.mu.RUnlock()
	if !ok {
		return nil, ErrInvalidIdentityToken
	}
	return key, nil
}

func (ks *keySet) refresh(ctx context.Context) error {
	_, err, _ := ks.group.Do("jwks", func() (any, error) {
		res, err := ks.breaker.Execute(func() (fetchResult, error) {
			return ks.fetch(ctx)
		})
		if err != nil {
			ks.logger.WarnContext(ctx, "failed to fetch google signing keys",
				logger.Error(err),
				logger.Component("googleid"),
			)
			return nil, fmt.Errorf("%w: %w", ErrKeysUnavailable, err)
		}

		ttl := res.maxAge
		if ttl <= 0 {
			ttl = defaultKeysTTL
		}

		now := ks.now()
		ks.mu.Lock()
		ks.keys = res.keys
		ks.fetchedAt = now
		ks.expiresAt = now.Add(ttl)
		ks.mu.Unlock()

		return nil, nil
	})
	return err
}

func (ks *keySet) fetch(ctx context.Context) (fetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ks.url, http.NoBody)
	if err != nil {
		return fetchResult{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := ks.client.Do(req)
	if err != nil {
		return fetchResult{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fetchResult{}, fmt.Errorf("google certs returned status %d", resp.StatusCode)
	}

	var doc jwksDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return fetchResult{}, fmt.Errorf("decode key set: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		pub, err := k.publicKey()
		if err != nil {
			ks.logger.WarnContext(ctx, "skipping malformed google key",
				slog.String("kid", k.Kid),
				logger.Error(err),
				logger.Component("googleid"),
			)
			continue
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return fetchResult{}, fmt.Errorf("key set contains no usable keys")
	}

	return fetchResult{keys: keys, maxAge: parseMaxAge(resp.Header.Get("Cache-Control"))}, nil
}

func (k jwk) publicKey() (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	if len(n) == 0 || len(e) == 0 {
		return nil, fmt.Errorf("empty key material")
	}

	exp := new(big.Int).SetBytes(e)
	if !exp.IsInt64() || exp.Int64() > 1<<31-1 {
		return nil, fmt.Errorf("exponent too large")
	}

	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(exp.Int64())}, nil
}

func parseMaxAge(cacheControl string) time.Duration {
	for _, directive := range strings.Split(cacheControl, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(directive), "=")
		if !ok || !strings.EqualFold(name, "max-age") {
			continue
		}
		secs, err := strconv.Atoi(strings.Trim(value, `"`))
		if err != nil || secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	return 0
}
