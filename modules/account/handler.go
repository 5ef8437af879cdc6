package account

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/codeai/handler"
	"github.com/dmitrymomot/codeai/pkg/jwt"
	accountsvc "github.com/dmitrymomot/codeai/svc/account"
)

// Service is the account lifecycle the HTTP layer drives.
type Service interface {
	Signup(ctx context.Context, in accountsvc.SignupInput) (*accountsvc.AuthResult, error)
	Login(ctx context.Context, email, password string) (*accountsvc.AuthResult, error)
	GoogleLogin(ctx context.Context, idToken string) (*accountsvc.AuthResult, error)
	GoogleLoginWithCode(ctx context.Context, code string) (*accountsvc.AuthResult, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*accountsvc.Profile, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, in accountsvc.UpdateProfileInput) (*accountsvc.Profile, error)
	ChangePassword(ctx context.Context, id uuid.UUID, current, newPassword string) error
	DeleteAccount(ctx context.Context, id uuid.UUID) error
	RequestPasswordReset(ctx context.Context, email string) (*accountsvc.ResetTicket, error)
	CompletePasswordReset(ctx context.Context, token, newPassword string) error
	Authenticate(ctx context.Context, token string) (uuid.UUID, error)
}

var _ Service = (*accountsvc.Service)(nil)

// Response messages.
const (
	msgSignup          = "Signup successful"
	msgLogin           = "Login successful"
	msgProfileUpdated  = "Profile updated"
	msgPasswordUpdated = "Password updated successfully"
	msgAccountDeleted  = "Account deleted successfully"
	msgResetLinkSent   = "Password reset link sent to your email"
	msgPasswordReset   = "Password has been reset successfully"
)

// Handler serves the account HTTP API.
type Handler struct {
	svc    Service
	logger *slog.Logger
}

// NewHandler creates a Handler for svc.
func NewHandler(svc Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{svc: svc, logger: logger}
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// googleLoginRequest carries either an ID token from the browser sign-in
// button or an authorization code from the redirect flow.
type googleLoginRequest struct {
	TokenID string `json:"tokenId"`
	Code    string `json:"code"`
}

type updateProfileRequest struct {
	Name   *string `json:"name"`
	Avatar *string `json:"avatar"`
}

type updatePasswordRequest struct {
	Current string `json:"current"`
	NewPass string `json:"newPass"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type authResponse struct {
	Message   string             `json:"message,omitempty"`
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expiresAt"`
	User      accountsvc.Profile `json:"user"`
}

type profileResponse struct {
	Message string             `json:"message,omitempty"`
	User    accountsvc.Profile `json:"user"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func newAuthResponse(msg string, res *accountsvc.AuthResult) authResponse {
	return authResponse{
		Message:   msg,
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		User:      res.Profile,
	}
}

func (h *Handler) signup(ctx handler.Context, req signupRequest) handler.Response {
	res, err := h.svc.Signup(ctx, accountsvc.SignupInput(req))
	if err != nil {
		return h.fail(ctx, err)
	}
	return handler.JSON(newAuthResponse(msgSignup, res))
}

func (h *Handler) login(ctx handler.Context, req loginRequest) handler.Response {
	res, err := h.svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		return h.fail(ctx, err)
	}
	return handler.JSON(newAuthResponse(msgLogin, res))
}

func (h *Handler) googleLogin(ctx handler.Context, req googleLoginRequest) handler.Response {
	var (
		res *accountsvc.AuthResult
		err error
	)
	if req.TokenID == "" && req.Code != "" {
		res, err = h.svc.GoogleLoginWithCode(ctx, req.Code)
	} else {
		res, err = h.svc.GoogleLogin(ctx, req.TokenID)
	}
	if err != nil {
		return h.fail(ctx, err)
	}
	return handler.JSON(newAuthResponse(msgLogin, res))
}

func (h *Handler) me(ctx handler.Context, _ struct{}) handler.Response {
	id, err := accountID(ctx)
	if err != nil {
		return h.fail(ctx, err)
	}

	profile, err := h.svc.GetProfile(ctx, id)
	if err != nil {
		return h.fail(ctx, err)
	}
	return handler.JSON(profileResponse{User: *profile})
}

func (h *Handler) updateProfile(ctx handler.Context, req updateProfileRequest) handler.Response {
	id, err := accountID(ctx)
	if err != nil {
		return h.fail(ctx, err)
	}

	profile, err := h.svc.UpdateProfile(ctx, id, accountsvc.UpdateProfileInput(req))
	if err != nil {
		return h.fail(ctx, err)
	}
	return handler.JSON(profileResponse{Message: msgProfileUpdated, User: *profile})
}

func (h *Handler) updatePassword(ctx handler.Context, req updatePasswordRequest) handler.Response {
	id, err := accountID(ctx)
	if err != nil {
		return h.fail(ctx, err)
	}

	if err := h.svc.ChangePassword(ctx, id, req.Current, req.NewPass); err != nil {
		return h.fail(ctx, err)
	}
	return handler.JSON(messageResponse{Message: msgPasswordUpdated})
}

func (h *Handler) deleteAccount(ctx handler.Context, _ struct{}) handler.Response {
	id, err := accountID(ctx)
	if err != nil {
		return h.fail(ctx, err)
	}

	if err := h.svc.DeleteAccount(ctx, id); err != nil {
		return h.fail(ctx, err)
	}
	return handler.JSON(messageResponse{Message: msgAccountDeleted})
}

// forgotPassword answers the same way whether or not the email is registered.
func (h *Handler) forgotPassword(ctx handler.Context, req forgotPasswordRequest) handler.Response {
	if _, err := h.svc.RequestPasswordReset(ctx, req.Email); err != nil {
		return h.fail(ctx, err)
	}
	return handler.JSON(messageResponse{Message: msgResetLinkSent})
}

func (h *Handler) resetPassword(ctx handler.Context, req resetPasswordRequest) handler.Response {
	if err := h.svc.CompletePasswordReset(ctx, req.Token, req.NewPassword); err != nil {
		return h.fail(ctx, err)
	}
	return handler.JSON(messageResponse{Message: msgPasswordReset})
}

// authenticate adapts Service.Authenticate to the jwt middleware.
func (h *Handler) authenticate(ctx context.Context, token string) (string, error) {
	id, err := h.svc.Authenticate(ctx, token)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// accountID reads the authenticated account id the middleware stored.
func accountID(ctx context.Context) (uuid.UUID, error) {
	subject, ok := jwt.SubjectFromContext(ctx)
	if !ok {
		return uuid.Nil, accountsvc.ErrUnauthorized
	}

	id, err := uuid.Parse(subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed subject", accountsvc.ErrUnauthorized)
	}
	return id, nil
}
