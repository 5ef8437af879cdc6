package account_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/codeai/handler"
	"github.com/dmitrymomot/codeai/modules/account"
	"github.com/dmitrymomot/codeai/pkg/email"
	"github.com/dmitrymomot/codeai/pkg/googleid"
	"github.com/dmitrymomot/codeai/pkg/hasher"
	"github.com/dmitrymomot/codeai/pkg/jwt"
	"github.com/dmitrymomot/codeai/pkg/notify"
	"github.com/dmitrymomot/codeai/pkg/ratelimiter"
	accountsvc "github.com/dmitrymomot/codeai/svc/account"
	"github.com/dmitrymomot/codeai/svc/account/memstore"
)

type MockIdentityVerifier struct {
	mock.Mock
}

func (m *MockIdentityVerifier) Verify(ctx context.Context, idToken string) (*googleid.Identity, error) {
	args := m.Called(ctx, idToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*googleid.Identity), args.Error(1)
}

type outbox struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (o *outbox) Enqueue(msg notify.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msg)
	return nil
}

func (o *outbox) find(template string) (notify.Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.msgs) - 1; i >= 0; i-- {
		if o.msgs[i].Template == template {
			return o.msgs[i], true
		}
	}
	return notify.Message{}, false
}

type apiEnv struct {
	server     *httptest.Server
	identities *MockIdentityVerifier
	outbox     *outbox
}

func newAPIEnv(t *testing.T, opts ...account.RouterOption) *apiEnv {
	t.Helper()

	sessions, err := jwt.New(jwt.Config{Secret: "router-test-secret", Issuer: "codeai"})
	require.NoError(t, err)

	env := &apiEnv{
		identities: &MockIdentityVerifier{},
		outbox:     &outbox{},
	}
	svc := accountsvc.NewService(
		memstore.New(),
		hasher.New(hasher.WithCost(bcrypt.MinCost)),
		sessions,
		env.identities,
		env.outbox,
		accountsvc.Config{
			FrontendURL:   "https://app.codeai.dev",
			BackendURL:    "https://api.codeai.dev",
			ResetTokenTTL: time.Hour,
		},
	)

	r := chi.NewRouter()
	r.Mount("/api/auth", account.Router(svc, opts...))
	env.server = httptest.NewServer(r)
	t.Cleanup(env.server.Close)
	return env
}

func (e *apiEnv) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, e.server.URL+"/api/auth"+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (e *apiEnv) signup(t *testing.T) string {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/signup", "", map[string]string{
		"name":     "Ana",
		"email":    "ana@x.com",
		"password": "Secret123!",
	})
	require.Equal(t, http.StatusOK, status)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func errorMessage(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	msg, _ := e["message"].(string)
	return msg
}

func TestRouter_SignupLoginMe(t *testing.T) {
	t.Parallel()
	env := newAPIEnv(t)

	status, body := env.do(t, http.MethodPost, "/signup", "", map[string]string{
		"name":     "Ana",
		"email":    "ana@x.com",
		"password": "Secret123!",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Signup successful", body["message"])
	user, _ := body["user"].(map[string]any)
	assert.Equal(t, "Ana", user["name"])
	assert.Equal(t, "ana@x.com", user["email"])
	assert.NotContains(t, user, "password")
	assert.NotContains(t, user, "passwordHash")

	status, body = env.do(t, http.MethodPost, "/login", "", map[string]string{
		"email":    "ana@x.com",
		"password": "Secret123!",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Login successful", body["message"])
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	status, body = env.do(t, http.MethodGet, "/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	user, _ = body["user"].(map[string]any)
	assert.Equal(t, "ana@x.com", user["email"])

	_, ok := env.outbox.find(email.TemplateWelcome)
	assert.True(t, ok, "welcome email queued")
}

func TestRouter_SignupErrors(t *testing.T) {
	t.Parallel()
	env := newAPIEnv(t)
	env.signup(t)

	t.Run("duplicate email", func(t *testing.T) {
		status, body := env.do(t, http.MethodPost, "/signup", "", map[string]string{
			"name":     "Other",
			"email":    "ana@x.com",
			"password": "Another123!",
		})
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, "conflict", errorCode(body))
	})

	t.Run("validation", func(t *testing.T) {
		status, body := env.do(t, http.MethodPost, "/signup", "", map[string]string{
			"name":     "Bo",
			"email":    "not-an-email",
			"password": "short",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, status)
		assert.Equal(t, "validation_error", errorCode(body))
		details, _ := body["error"].(map[string]any)["details"].(map[string]any)
		assert.Contains(t, details, "email")
		assert.Contains(t, details, "password")
	})

	t.Run("malformed body", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodPost, env.server.URL+"/api/auth/signup", strings.NewReader(`{"name":`))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		resp, err := env.server.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestRouter_LoginFailuresLookAlike(t *testing.T) {
	t.Parallel()
	env := newAPIEnv(t)
	env.signup(t)

	wrongPass, wrongBody := env.do(t, http.MethodPost, "/login", "", map[string]string{
		"email":    "ana@x.com",
		"password": "WrongPass1!",
	})
	unknown, unknownBody := env.do(t, http.MethodPost, "/login", "", map[string]string{
		"email":    "nobody@x.com",
		"password": "WrongPass1!",
	})

	assert.Equal(t, http.StatusUnauthorized, wrongPass)
	assert.Equal(t, wrongPass, unknown)
	assert.Equal(t, wrongBody, unknownBody)
	assert.Equal(t, "invalid email or password", errorMessage(wrongBody))
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	t.Parallel()
	env := newAPIEnv(t)

	routes := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/me", nil},
		{http.MethodPut, "/update-profile", map[string]string{"name": "X"}},
		{http.MethodPut, "/update-password", map[string]string{"current": "a", "newPass": "b"}},
		{http.MethodDelete, "/delete-account", nil},
	}

	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			status, body := env.do(t, rt.method, rt.path, "", rt.body)
			assert.Equal(t, http.StatusUnauthorized, status)
			assert.Equal(t, "unauthorized", errorCode(body))

			status, _ = env.do(t, rt.method, rt.path, "not-a-jwt", rt.body)
			assert.Equal(t, http.StatusUnauthorized, status)
		})
	}
}

func TestRouter_UpdateProfileAndPassword(t *testing.T) {
	t.Parallel()
	env := newAPIEnv(t)
	token := env.signup(t)

	status, body := env.do(t, http.MethodPut, "/update-profile", token, map[string]string{"name": "Ana Maria"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Profile updated", body["message"])
	user, _ := body["user"].(map[string]any)
	assert.Equal(t, "Ana Maria", user["name"])
	assert.Equal(t, "ana@x.com", user["email"])

	status, body = env.do(t, http.MethodPut, "/update-password", token, map[string]string{
		"current": "WrongPass1!",
		"newPass": "NewSecret456!",
	})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "current password is incorrect", errorMessage(body))

	status, body = env.do(t, http.MethodPut, "/update-password", token, map[string]string{
		"current": "Secret123!",
		"newPass": "NewSecret456!",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Password updated successfully", body["message"])

	status, _ = env.do(t, http.MethodPost, "/login", "", map[string]string{
		"email":    "ana@x.com",
		"password": "NewSecret456!",
	})
	assert.Equal(t, http.StatusOK, status)
}

func TestRouter_DeleteAccount(t *testing.T) {
	t.Parallel()
	env := newAPIEnv(t)
	token := env.signup(t)

	status, body := env.do(t, http.MethodDelete, "/delete-account", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Account deleted successfully", body["message"])

	status, _ = env.do(t, http.MethodGet, "/me", token, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = env.do(t, http.MethodDelete, "/delete-account", token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRouter_PasswordReset(t *testing.T) {
	t.Parallel()
	env := newAPIEnv(t)
	env.signup(t)

	status, known := env.do(t, http.MethodPost, "/forgot-password", "", map[string]string{"email": "ana@x.com"})
	require.Equal(t, http.StatusOK, status)
	status, unknown := env.do(t, http.MethodPost, "/forgot-password", "", map[string]string{"email": "nobody@x.com"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, known, unknown)
	assert.Equal(t, "Password reset link sent to your email", known["message"])

	msg, ok := env.outbox.find(email.TemplatePasswordReset)
	require.True(t, ok)
	token := msg.Data.ResetURL[strings.LastIndex(msg.Data.ResetURL, "/")+1:]
	require.Len(t, token, 64)

	status, body := env.do(t, http.MethodPost, "/reset-password", "", map[string]string{
		"token":       token,
		"newPassword": "Fresh789!x",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Password has been reset successfully", body["message"])

	status, body = env.do(t, http.MethodPost, "/reset-password", "", map[string]string{
		"token":       token,
		"newPassword": "Again789!x",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid or expired token", errorMessage(body))

	status, _ = env.do(t, http.MethodPost, "/login", "", map[string]string{
		"email":    "ana@x.com",
		"password": "Fresh789!x",
	})
	assert.Equal(t, http.StatusOK, status)
}

func TestRouter_GoogleLogin(t *testing.T) {
	t.Parallel()
	env := newAPIEnv(t)

	env.identities.On("Verify", mock.Anything, "good-token").Return(&googleid.Identity{
		Subject:       "g-1",
		Email:         "bob@gmail.com",
		EmailVerified: true,
		Name:          "Bob",
	}, nil)
	env.identities.On("Verify", mock.Anything, "bad-token").Return(nil, googleid.ErrInvalidIdentityToken)

	status, body := env.do(t, http.MethodPost, "/google-login", "", map[string]string{"tokenId": "good-token"})
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["token"])
	user, _ := body["user"].(map[string]any)
	assert.Equal(t, "bob@gmail.com", user["email"])
	assert.Equal(t, true, user["google"])

	status, _ = env.do(t, http.MethodPost, "/google-login", "", map[string]string{"tokenId": "bad-token"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = env.do(t, http.MethodPost, "/google-login", "", map[string]string{})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "validation_error", errorCode(body))

	// No exchanger configured.
	status, body = env.do(t, http.MethodPost, "/google-login", "", map[string]string{"code": "auth-code"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	details, _ := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Contains(t, details, "code")

	// Google accounts have no password to log in with.
	status, _ = env.do(t, http.MethodPost, "/login", "", map[string]string{
		"email":    "bob@gmail.com",
		"password": "Whatever123!",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRouter_GoogleKeysUnavailable(t *testing.T) {
	t.Parallel()
	env := newAPIEnv(t)

	env.identities.On("Verify", mock.Anything, "any").
		Return(nil, errors.Join(googleid.ErrKeysUnavailable, errors.New("dial tcp: timeout")))

	status, body := env.do(t, http.MethodPost, "/google-login", "", map[string]string{"tokenId": "any"})
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.NotContains(t, errorMessage(body), "dial tcp")
}

func TestRouter_RateLimit(t *testing.T) {
	t.Parallel()

	store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
	limiter, err := ratelimiter.NewBucket(store, ratelimiter.Config{
		Capacity:       2,
		RefillRate:     1,
		RefillInterval: time.Hour,
	})
	require.NoError(t, err)
	env := newAPIEnv(t, account.WithRateLimiter(limiter))

	creds := map[string]string{"email": "ana@x.com", "password": "Secret123!"}
	for range 2 {
		status, _ := env.do(t, http.MethodPost, "/login", "", creds)
		assert.Equal(t, http.StatusUnauthorized, status)
	}

	status, body := env.do(t, http.MethodPost, "/login", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, handler.ErrTooManyRequests.Key, errorCode(body))

	// Scopes are independent.
	status, _ = env.do(t, http.MethodPost, "/forgot-password", "", map[string]string{"email": "ana@x.com"})
	assert.Equal(t, http.StatusOK, status)
}
