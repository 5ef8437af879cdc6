package googleid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/dmitrymomot/codeai/pkg/metrics"
)

// Identity is the verified subset of a Google ID token.
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

var validIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

// Google has emitted email_verified both as a JSON bool and as a string.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.Trim(string(data), `"`) {
	case "true":
		*b = true
	case "false", "null", "":
		*b = false
	default:
		return fmt.Errorf("invalid boolean %s", data)
	}
	return nil
}

type googleClaims struct {
	gojwt.RegisteredClaims
	Email         string   `json:"email"`
	EmailVerified flexBool `json:"email_verified"`
	Name          string   `json:"name"`
	Picture       string   `json:"picture"`
}

// Verifier checks Google ID tokens offline against Google's published keys.
type Verifier struct {
	clientID     string
	verifiedOnly bool
	timeout      time.Duration
	keys         *keySet
	now          func() time.Time
	logger       *slog.Logger
}

type verifierOptions struct {
	httpClient *http.Client
	now        func() time.Time
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Option configures a Verifier.
type Option func(*verifierOptions)

// WithHTTPClient replaces the client used to fetch signing keys.
func WithHTTPClient(c *http.Client) Option {
	return func(o *verifierOptions) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithClock replaces time.Now for expiry checks and key caching.
func WithClock(now func() time.Time) Option {
	return func(o *verifierOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets a logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *verifierOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics reports the key fetch circuit breaker state.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *verifierOptions) {
		o.metrics = m
	}
}

// NewVerifier creates a Verifier for tokens issued to cfg.ClientID.
func NewVerifier(cfg Config, opts ...Option) (*Verifier, error) {
	if cfg.ClientID == "" {
		return nil, ErrMissingClientID
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	certsURL := cfg.CertsURL
	if certsURL == "" {
		certsURL = CertsURL
	}

	o := &verifierOptions{
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}

	return &Verifier{
		clientID:     cfg.ClientID,
		verifiedOnly: cfg.VerifiedOnly,
		timeout:      timeout,
		keys:         newKeySet(certsURL, o.httpClient, o.now, o.logger, o.metrics),
		now:          o.now,
		logger:       o.logger,
	}, nil
}

// Verify validates idToken and returns the identity it asserts. Signature,
// audience, issuer and expiry must all check out. Unreachable key storage
// yields ErrKeysUnavailable; every other failure ErrInvalidIdentityToken.
func (v *Verifier) Verify(ctx context.Context, idToken string) (*Identity, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, ErrInvalidIdentityToken
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	var keyErr error
	claims := &googleClaims{}
	_, err := gojwt.ParseWithClaims(idToken, claims, func(t *gojwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		key, err := v.keys.key(ctx, kid)
		if err != nil {
			keyErr = err
			return nil, err
		}
		return key, nil
	},
		gojwt.WithValidMethods([]string{gojwt.SigningMethodRS256.Alg()}),
		gojwt.WithAudience(v.clientID),
		gojwt.WithExpirationRequired(),
		gojwt.WithTimeFunc(v.now),
	)
	if err != nil {
		if errors.Is(keyErr, ErrKeysUnavailable) {
			return nil, keyErr
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidIdentityToken, err)
	}

	if !validIssuer(claims.Issuer) {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidIdentityToken, claims.Issuer)
	}
	if claims.Email == "" || claims.Subject == "" {
		return nil, fmt.Errorf("%w: token carries no email", ErrInvalidIdentityToken)
	}
	if v.verifiedOnly && !bool(claims.EmailVerified) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIdentityToken, ErrEmailNotVerified)
	}

	return &Identity{
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: bool(claims.EmailVerified),
		Name:          claims.Name,
		Picture:       claims.Picture,
	}, nil
}

func validIssuer(iss string) bool {
	for _, v := range validIssuers {
		if iss == v {
			return true
		}
	}
	return false
}

// Compile-time interface assertion
var _ json.Unmarshaler = (*flexBool)(nil)
