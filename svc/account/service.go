package account

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/codeai/pkg/email"
	"github.com/dmitrymomot/codeai/pkg/googleid"
	"github.com/dmitrymomot/codeai/pkg/hasher"
	"github.com/dmitrymomot/codeai/pkg/jwt"
	"github.com/dmitrymomot/codeai/pkg/logger"
	"github.com/dmitrymomot/codeai/pkg/metrics"
	"github.com/dmitrymomot/codeai/pkg/notify"
	"github.com/dmitrymomot/codeai/pkg/resettoken"
	"github.com/dmitrymomot/codeai/pkg/validator"
)

// PasswordHasher hashes and verifies passwords.
type PasswordHasher interface {
	Hash(ctx context.Context, plaintext string) ([]byte, error)
	Verify(ctx context.Context, plaintext string, digest []byte) (bool, error)
}

// SessionManager issues and verifies session tokens.
type SessionManager interface {
	Issue(subject string) (jwt.Token, error)
	Verify(token string) (*jwt.Claims, error)
}

// IdentityVerifier checks Google ID tokens.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*googleid.Identity, error)
}

// CodeExchanger redeems Google authorization codes.
type CodeExchanger interface {
	Exchange(ctx context.Context, code string) (*googleid.Identity, error)
}

// Notifier accepts emails for asynchronous delivery.
type Notifier interface {
	Enqueue(msg notify.Message) error
}

var (
	_ PasswordHasher   = (*hasher.Hasher)(nil)
	_ SessionManager   = (*jwt.Service)(nil)
	_ IdentityVerifier = (*googleid.Verifier)(nil)
	_ CodeExchanger    = (*googleid.CodeExchanger)(nil)
	_ Notifier         = (*notify.Dispatcher)(nil)
)

// Metric operation labels.
const (
	opSignup        = "signup"
	opLogin         = "login"
	opGoogleLogin   = "google_login"
	opChangePass    = "change_password"
	opResetRequest  = "reset_request"
	opResetComplete = "reset_complete"
)

// Service implements the account lifecycle: signup, login, Google sign-in,
// profile changes and password recovery.
type Service struct {
	storage    Storage
	hasher     PasswordHasher
	sessions   SessionManager
	identities IdentityVerifier
	codes      CodeExchanger
	notifier   Notifier
	vault      *Vault
	cfg        Config

	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets a logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records auth outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock replaces time.Now for timestamps and reset token expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCodeExchanger enables sign-in with Google authorization codes.
func WithCodeExchanger(c CodeExchanger) Option {
	return func(s *Service) {
		s.codes = c
	}
}

// NewService creates a Service. notifier may be nil, in which case no email
// is sent.
func NewService(
	storage Storage,
	hasher PasswordHasher,
	sessions SessionManager,
	identities IdentityVerifier,
	notifier Notifier,
	cfg Config,
	opts ...Option,
) *Service {
	s := &Service{
		storage:    storage,
		hasher:     hasher,
		sessions:   sessions,
		identities: identities,
		notifier:   notifier,
		cfg:        cfg,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.vault = NewVault(storage, cfg.ResetTokenTTL, s.now)
	return s
}

// Signup registers a password account and opens a session.
func (s *Service) Signup(ctx context.Context, in SignupInput) (res *AuthResult, err error) {
	defer func() { s.record(opSignup, err) }()

	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	if err := validator.Struct(in); err != nil {
		return nil, err
	}

	if _, err := s.storage.GetByEmail(ctx, in.Email); err == nil {
		return nil, ErrEmailAlreadyExists
	} else if !errors.Is(err, ErrAccountNotFound) {
		return nil, storeErr("lookup account", err)
	}

	hash, err := s.hashPassword(ctx, "password", in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	acc := &Account{
		ID:           uuid.New(),
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.storage.Create(ctx, acc); err != nil {
		if errors.Is(err, ErrEmailAlreadyExists) {
			return nil, ErrEmailAlreadyExists
		}
		return nil, storeErr("create account", err)
	}

	res, err = s.openSession(acc)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "account created",
		logger.UserID(acc.ID.String()),
		logger.Component("account"),
	)
	s.notify(ctx, acc, email.TemplateWelcome, email.TemplateData{Name: acc.Name})
	return res, nil
}

// Login opens a session for email and password. Unknown emails, accounts
// without a password and wrong passwords all return ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, emailAddr, password string) (res *AuthResult, err error) {
	defer func() { s.record(opLogin, err) }()

	in := loginInput{Email: normalizeEmail(emailAddr), Password: password}
	if err := validator.Struct(in); err != nil {
		return nil, err
	}

	acc, err := s.storage.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, storeErr("lookup account", err)
	}
	if !acc.HasPassword() {
		return nil, ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(ctx, in.Password, acc.PasswordHash)
	if err != nil {
		if errors.Is(err, hasher.ErrPasswordTooLong) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	return s.openSession(acc)
}

// GoogleLogin verifies a Google ID token and opens a session for the
// verified email, creating the account on first sign-in.
func (s *Service) GoogleLogin(ctx context.Context, idToken string) (res *AuthResult, err error) {
	defer func() { s.record(opGoogleLogin, err) }()

	if strings.TrimSpace(idToken) == "" {
		return nil, requiredField("tokenId")
	}

	identity, err := s.identities.Verify(ctx, idToken)
	if err != nil {
		return nil, identityErr(err)
	}
	return s.signInWithIdentity(ctx, identity)
}

// GoogleLoginWithCode redeems an authorization code and continues as
// GoogleLogin.
func (s *Service) GoogleLoginWithCode(ctx context.Context, code string) (res *AuthResult, err error) {
	defer func() { s.record(opGoogleLogin, err) }()

	if strings.TrimSpace(code) == "" {
		return nil, requiredField("code")
	}
	if s.codes == nil {
		return nil, identityErr(googleid.ErrCodeFlowDisabled)
	}

	identity, err := s.codes.Exchange(ctx, code)
	if err != nil {
		return nil, identityErr(err)
	}
	return s.signInWithIdentity(ctx, identity)
}

func (s *Service) signInWithIdentity(ctx context.Context, identity *googleid.Identity) (*AuthResult, error) {
	emailAddr := normalizeEmail(identity.Email)

	acc, err := s.storage.GetByEmail(ctx, emailAddr)
	switch {
	case err == nil:
	case errors.Is(err, ErrAccountNotFound):
		acc, err = s.createGoogleAccount(ctx, emailAddr, identity)
		if err != nil {
			return nil, err
		}
	default:
		return nil, storeErr("lookup account", err)
	}

	return s.openSession(acc)
}

func (s *Service) createGoogleAccount(ctx context.Context, emailAddr string, identity *googleid.Identity) (*Account, error) {
	name := strings.TrimSpace(identity.Name)
	if name == "" {
		name, _, _ = strings.Cut(emailAddr, "@")
	}

	now := s.now()
	acc := &Account{
		ID:        uuid.New(),
		Email:     emailAddr,
		Name:      name,
		Google:    true,
		Avatar:    identity.Picture,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.storage.Create(ctx, acc)
	if errors.Is(err, ErrEmailAlreadyExists) {
		// Lost a race with a concurrent first sign-in.
		existing, err := s.storage.GetByEmail(ctx, emailAddr)
		if err != nil {
			return nil, storeErr("lookup account", err)
		}
		return existing, nil
	}
	if err != nil {
		return nil, storeErr("create account", err)
	}

	s.logger.InfoContext(ctx, "account created from google identity",
		logger.UserID(acc.ID.String()),
		logger.Component("account"),
	)
	s.notify(ctx, acc, email.TemplateWelcome, email.TemplateData{Name: acc.Name})
	return acc, nil
}

// GetProfile returns the public profile of the account.
func (s *Service) GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	acc, err := s.getAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	p := toProfile(acc, s.cfg.BackendURL)
	return &p, nil
}

// UpdateProfile changes the display name and/or avatar reference.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, in UpdateProfileInput) (*Profile, error) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}
	if in.Avatar != nil {
		avatar := strings.TrimSpace(*in.Avatar)
		in.Avatar = &avatar
	}

	if err := validator.Merge(
		validator.Apply(
			validator.Rule{
				Check: func() bool { return in.Name == nil || *in.Name != "" },
				Error: validator.ValidationError{Field: "name", Tag: "notblank", Message: "is required"},
			},
			validator.Rule{
				Check: func() bool { return in.Name == nil || len([]rune(*in.Name)) <= 100 },
				Error: validator.ValidationError{Field: "name", Tag: "max", Message: "must be at most 100 characters"},
			},
		),
		validateAvatar(in.Avatar),
	); err != nil {
		return nil, err
	}

	if in.Name == nil && in.Avatar == nil {
		return s.GetProfile(ctx, id)
	}

	acc, err := s.storage.UpdateProfile(ctx, id, ProfileUpdate{
		Name:      in.Name,
		Avatar:    in.Avatar,
		UpdatedAt: s.now(),
	})
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, storeErr("update profile", err)
	}

	p := toProfile(acc, s.cfg.BackendURL)
	return &p, nil
}

// ChangePassword replaces the password after checking the current one. If
// another change lands first, this call fails with ErrIncorrectPassword.
func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, current, newPassword string) (err error) {
	defer func() { s.record(opChangePass, err) }()

	if err := validator.Struct(changePasswordInput{Current: current, New: newPassword}); err != nil {
		return err
	}

	acc, err := s.getAccount(ctx, id)
	if err != nil {
		return err
	}
	if !acc.HasPassword() {
		return ErrIncorrectPassword
	}

	ok, err := s.hasher.Verify(ctx, current, acc.PasswordHash)
	if err != nil && !errors.Is(err, hasher.ErrPasswordTooLong) {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return ErrIncorrectPassword
	}

	hash, err := s.hashPassword(ctx, "newPass", newPassword)
	if err != nil {
		return err
	}

	if err := s.storage.UpdatePasswordCAS(ctx, id, acc.PasswordHash, hash, s.now()); err != nil {
		switch {
		case errors.Is(err, ErrPasswordChanged):
			return ErrIncorrectPassword
		case errors.Is(err, ErrAccountNotFound):
			return ErrAccountNotFound
		default:
			return storeErr("update password", err)
		}
	}
	return nil
}

// DeleteAccount removes the account and its history.
func (s *Service) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	if err := s.storage.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return ErrAccountNotFound
		}
		return storeErr("delete account", err)
	}

	s.logger.InfoContext(ctx, "account deleted",
		logger.UserID(id.String()),
		logger.Component("account"),
	)
	return nil
}

// RequestPasswordReset issues a reset token and mails the reset link. An
// unknown email returns (nil, nil) so callers cannot tell registered
// addresses apart.
func (s *Service) RequestPasswordReset(ctx context.Context, emailAddr string) (ticket *ResetTicket, err error) {
	defer func() { s.record(opResetRequest, err) }()

	in := forgotPasswordInput{Email: normalizeEmail(emailAddr)}
	if err := validator.Struct(in); err != nil {
		return nil, err
	}

	acc, err := s.storage.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			s.logger.DebugContext(ctx, "password reset requested for unknown email",
				logger.Component("account"),
			)
			return nil, nil
		}
		return nil, storeErr("lookup account", err)
	}

	plaintext, expiresAt, err := s.vault.Issue(ctx, acc)
	if err != nil {
		return nil, err
	}

	ticket = &ResetTicket{
		AccountID: acc.ID,
		Email:     acc.Email,
		Token:     plaintext,
		ResetURL:  strings.TrimRight(s.cfg.FrontendURL, "/") + "/reset-password/" + plaintext,
		ExpiresAt: expiresAt,
	}

	s.notify(ctx, acc, email.TemplatePasswordReset, email.TemplateData{
		Name:       acc.Name,
		ResetURL:   ticket.ResetURL,
		ExpiresIn:  humanDuration(s.vault.TTL()),
		SupportURL: s.cfg.SupportURL,
	})
	return ticket, nil
}

// CompletePasswordReset sets newPassword on the account owning token and
// invalidates the token.
func (s *Service) CompletePasswordReset(ctx context.Context, token, newPassword string) (err error) {
	defer func() { s.record(opResetComplete, err) }()

	in := resetPasswordInput{Token: strings.TrimSpace(token), NewPassword: newPassword}
	if err := validator.Struct(in); err != nil {
		return err
	}

	// Reject garbage before paying for a hash.
	if !resettoken.WellFormed(in.Token) {
		return ErrInvalidResetToken
	}

	hash, err := s.hashPassword(ctx, "newPassword", in.NewPassword)
	if err != nil {
		return err
	}

	acc, err := s.vault.Consume(ctx, in.Token, hash)
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "password reset completed",
		logger.UserID(acc.ID.String()),
		logger.Component("account"),
	)
	s.notify(ctx, acc, email.TemplatePasswordResetSuccess, email.TemplateData{
		Name:       acc.Name,
		SupportURL: s.cfg.SupportURL,
	})
	return nil
}

// Authenticate verifies a session token and returns the account id it
// carries. Any failure is ErrUnauthorized.
func (s *Service) Authenticate(_ context.Context, token string) (uuid.UUID, error) {
	claims, err := s.sessions.Verify(token)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed subject", ErrUnauthorized)
	}
	return id, nil
}

func (s *Service) getAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	acc, err := s.storage.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, storeErr("get account", err)
	}
	return acc, nil
}

func (s *Service) openSession(acc *Account) (*AuthResult, error) {
	tok, err := s.sessions.Issue(acc.ID.String())
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}
	return &AuthResult{
		Token:     tok.Value,
		ExpiresAt: tok.ExpiresAt,
		Profile:   toProfile(acc, s.cfg.BackendURL),
	}, nil
}

func (s *Service) hashPassword(ctx context.Context, field, password string) ([]byte, error) {
	hash, err := s.hasher.Hash(ctx, password)
	switch {
	case err == nil:
		return hash, nil
	case errors.Is(err, hasher.ErrEmptyPassword):
		return nil, requiredField(field)
	case errors.Is(err, hasher.ErrPasswordTooLong):
		return nil, validator.ValidationErrors{{Field: field, Tag: "max", Message: "must be at most 72 bytes"}}
	default:
		return nil, fmt.Errorf("hash password: %w", err)
	}
}

// notify hands an email to the dispatcher. Failures are logged only.
func (s *Service) notify(ctx context.Context, acc *Account, template string, data email.TemplateData) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Enqueue(notify.Message{Template: template, To: acc.Email, Data: data})
	if err != nil {
		s.logger.WarnContext(ctx, "email not queued",
			slog.String("template", template),
			logger.UserID(acc.ID.String()),
			logger.Error(err),
			logger.Component("account"),
		)
	}
}

func (s *Service) record(operation string, err error) {
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailure
	}
	s.metrics.AuthAttempt(operation, outcome)
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrDependency, op, err)
}

func identityErr(err error) error {
	switch {
	case errors.Is(err, googleid.ErrKeysUnavailable):
		return fmt.Errorf("%w: %w", ErrDependency, err)
	case errors.Is(err, googleid.ErrCodeFlowDisabled):
		return validator.ValidationErrors{{Field: "code", Tag: "unsupported", Message: "sign-in with authorization code is not enabled"}}
	default:
		return fmt.Errorf("%w: %w", ErrInvalidIdentity, err)
	}
}

func validateAvatar(avatar *string) error {
	if avatar == nil {
		return nil
	}
	return validator.Apply(
		validator.Rule{
			Check: func() bool { return len(*avatar) <= maxAvatarLength },
			Error: validator.ValidationError{Field: "avatar", Tag: "max", Message: "must be at most 2048 characters"},
		},
		validator.Rule{
			Check: func() bool { return len(*avatar) > maxAvatarLength || validAvatar(*avatar) },
			Error: validator.ValidationError{Field: "avatar", Tag: "avatar", Message: "must be an http(s) URL or a file under " + AvatarDir},
		},
	)
}

func requiredField(field string) error {
	return validator.ValidationErrors{{Field: field, Tag: "required", Message: "is required"}}
}

func humanDuration(d time.Duration) string {
	plural := func(n int64, unit string) string {
		if n == 1 {
			return "1 " + unit
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}
	if d >= time.Hour && d%time.Hour == 0 {
		return plural(int64(d/time.Hour), "hour")
	}
	return plural(int64(d.Round(time.Minute)/time.Minute), "minute")
}
