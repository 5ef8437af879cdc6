package googleid_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/codeai/pkg/googleid"
)

const testClientID = "client-123.apps.googleusercontent.com"

type jwksServer struct {
	*httptest.Server

	mu     sync.Mutex
	keys   map[string]*rsa.PrivateKey
	hits   atomic.Int32
	status int
}

func newJWKSServer(t *testing.T) *jwksServer {
	t.Helper()

	s := &jwksServer{keys: map[string]*rsa.PrivateKey{}, status: http.StatusOK}
	s.addKey(t, "kid-1")

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.hits.Add(1)
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.status != http.StatusOK {
			w.WriteHeader(s.status)
			return
		}

		type key struct {
			Kid string `json:"kid"`
			Kty string `json:"kty"`
			Alg string `json:"alg"`
			Use string `json:"use"`
			N   string `json:"n"`
			E   string `json:"e"`
		}
		doc := struct {
			Keys []key `json:"keys"`
		}{}
		for kid, pk := range s.keys {
			doc.Keys = append(doc.Keys, key{
				Kid: kid,
				Kty: "RSA",
				Alg: "RS256",
				Use: "sig",
				N:   base64.RawURLEncoding.EncodeToString(pk.N.Bytes()),
				E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pk.E)).Bytes()),
			})
		}
		w.Header().Set("Cache-Control", "public, max-age=3600, must-revalidate")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(s.Close)

	return s
}

func (s *jwksServer) addKey(t *testing.T, kid string) {
	t.Helper()
	pk, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	s.mu.Lock()
	s.keys[kid] = pk
	s.mu.Unlock()
}

func (s *jwksServer) key(kid string) *rsa.PrivateKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[kid]
}

func (s *jwksServer) setStatus(code int) {
	s.mu.Lock()
	s.status = code
	s.mu.Unlock()
}

type idClaims struct {
	gojwt.RegisteredClaims
	Email         string `json:"email,omitempty"`
	EmailVerified any    `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
}

func validClaims(now time.Time) idClaims {
	return idClaims{
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   "google-sub-1",
			Issuer:    "https://accounts.google.com",
			Audience:  gojwt.ClaimStrings{testClientID},
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(time.Hour)),
		},
		Email:         "jane@example.com",
		EmailVerified: true,
		Name:          "Jane",
		Picture:       "https://lh3.googleusercontent.com/a/jane.png",
	}
}

func signRS256(t *testing.T, key *rsa.PrivateKey, kid string, claims gojwt.Claims) string {
	t.Helper()
	tok := gojwt.NewWithClaims(gojwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(key)
	require.NoError(t, err)
	return s
}

func newVerifier(t *testing.T, srv *jwksServer, now func() time.Time) *googleid.Verifier {
	t.Helper()
	v, err := googleid.NewVerifier(googleid.Config{
		ClientID:     testClientID,
		VerifiedOnly: true,
		HTTPTimeout:  5 * time.Second,
		CertsURL:     srv.URL,
	}, googleid.WithClock(now))
	require.NoError(t, err)
	return v
}

func TestNewVerifier_MissingClientID(t *testing.T) {
	t.Parallel()

	v, err := googleid.NewVerifier(googleid.Config{})
	require.ErrorIs(t, err, googleid.ErrMissingClientID)
	assert.Nil(t, v)
}

func TestVerifier_Verify(t *testing.T) {
	t.Parallel()

	srv := newJWKSServer(t)
	now := time.Now()
	v := newVerifier(t, srv, func() time.Time { return now })

	token := signRS256(t, srv.key("kid-1"), "kid-1", validClaims(now))
	id, err := v.Verify(context.Background(), token)
	require.NoError(t, err)

	assert.Equal(t, "google-sub-1", id.Subject)
	assert.Equal(t, "jane@example.com", id.Email)
	assert.True(t, id.EmailVerified)
	assert.Equal(t, "Jane", id.Name)
	assert.Equal(t, "https://lh3.googleusercontent.com/a/jane.png", id.Picture)

	// Second verification is served from cache.
	_, err = v.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int32(1), srv.hits.Load())
}

func TestVerifier_Verify_Rejects(t *testing.T) {
	t.Parallel()

	srv := newJWKSServer(t)
	now := time.Now()
	v := newVerifier(t, srv, func() time.Time { return now })
	key := srv.key("kid-1")

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	mutate := func(fn func(c *idClaims)) idClaims {
		c := validClaims(now)
		fn(&c)
		return c
	}

	hs, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, validClaims(now)).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "abc.def.ghi"},
		{"wrong audience", signRS256(t, key, "kid-1", mutate(func(c *idClaims) {
			c.Audience = gojwt.ClaimStrings{"someone-else"}
		}))},
		{"wrong issuer", signRS256(t, key, "kid-1", mutate(func(c *idClaims) {
			c.Issuer = "https://evil.example.com"
		}))},
		{"expired", signRS256(t, key, "kid-1", mutate(func(c *idClaims) {
			c.ExpiresAt = gojwt.NewNumericDate(now.Add(-time.Minute))
		}))},
		{"missing exp", signRS256(t, key, "kid-1", mutate(func(c *idClaims) {
			c.ExpiresAt = nil
		}))},
		{"unverified email", signRS256(t, key, "kid-1", mutate(func(c *idClaims) {
			c.EmailVerified = false
		}))},
		{"missing email", signRS256(t, key, "kid-1", mutate(func(c *idClaims) {
			c.Email = ""
		}))},
		{"foreign key", signRS256(t, otherKey, "kid-1", validClaims(now))},
		{"hmac algorithm", hs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			id, err := v.Verify(context.Background(), tt.token)
			assert.ErrorIs(t, err, googleid.ErrInvalidIdentityToken)
			assert.Nil(t, id)
		})
	}
}

func TestVerifier_StringEmailVerified(t *testing.T) {
	t.Parallel()

	srv := newJWKSServer(t)
	now := time.Now()
	v := newVerifier(t, srv, func() time.Time { return now })

	c := validClaims(now)
	c.EmailVerified = "true"
	id, err := v.Verify(context.Background(), signRS256(t, srv.key("kid-1"), "kid-1", c))
	require.NoError(t, err)
	assert.True(t, id.EmailVerified)
}

func TestVerifier_UnverifiedAllowed(t *testing.T) {
	t.Parallel()

	srv := newJWKSServer(t)
	now := time.Now()
	v, err := googleid.NewVerifier(googleid.Config{
		ClientID:     testClientID,
		VerifiedOnly: false,
		CertsURL:     srv.URL,
	}, googleid.WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	c := validClaims(now)
	c.EmailVerified = false
	id, err := v.Verify(context.Background(), signRS256(t, srv.key("kid-1"), "kid-1", c))
	require.NoError(t, err)
	assert.False(t, id.EmailVerified)
}

func TestVerifier_KeyRotation(t *testing.T) {
	t.Parallel()

	srv := newJWKSServer(t)
	var mu sync.Mutex
	now := time.Now()
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	v := newVerifier(t, srv, clock)

	_, err := v.Verify(context.Background(), signRS256(t, srv.key("kid-1"), "kid-1", validClaims(clock())))
	require.NoError(t, err)

	srv.addKey(t, "kid-2")
	rotated := signRS256(t, srv.key("kid-2"), "kid-2", validClaims(clock()))

	// Right after a fetch, unknown kids are not refetched.
	_, err = v.Verify(context.Background(), rotated)
	require.ErrorIs(t, err, googleid.ErrInvalidIdentityToken)
	assert.Equal(t, int32(1), srv.hits.Load())

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	id, err := v.Verify(context.Background(), signRS256(t, srv.key("kid-2"), "kid-2", validClaims(clock())))
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", id.Email)
	assert.Equal(t, int32(2), srv.hits.Load())
}

func TestVerifier_KeysUnavailable(t *testing.T) {
	t.Parallel()

	srv := newJWKSServer(t)
	signer := srv.key("kid-1")
	srv.setStatus(http.StatusServiceUnavailable)

	now := time.Now()
	v := newVerifier(t, srv, func() time.Time { return now })

	_, err := v.Verify(context.Background(), signRS256(t, signer, "kid-1", validClaims(now)))
	assert.ErrorIs(t, err, googleid.ErrKeysUnavailable)
	assert.NotErrorIs(t, err, googleid.ErrInvalidIdentityToken)
}

func TestVerifier_BreakerOpens(t *testing.T) {
	t.Parallel()

	srv := newJWKSServer(t)
	signer := srv.key("kid-1")
	srv.setStatus(http.StatusInternalServerError)

	now := time.Now()
	v := newVerifier(t, srv, func() time.Time { return now })
	token := signRS256(t, signer, "kid-1", validClaims(now))

	for range 5 {
		_, err := v.Verify(context.Background(), token)
		require.ErrorIs(t, err, googleid.ErrKeysUnavailable)
	}
	// Three consecutive failures trip the breaker; later calls never reach the server.
	assert.Equal(t, int32(3), srv.hits.Load())
}
