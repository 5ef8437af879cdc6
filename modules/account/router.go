package account

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/codeai/handler"
	"github.com/dmitrymomot/codeai/pkg/binder"
	"github.com/dmitrymomot/codeai/pkg/jwt"
	"github.com/dmitrymomot/codeai/pkg/metrics"
	"github.com/dmitrymomot/codeai/pkg/ratelimiter"
)

// Rate limit scopes of the unauthenticated endpoints.
const (
	ScopeSignup = "auth:signup"
	ScopeLogin  = "auth:login"
	ScopeGoogle = "auth:google"
	ScopeForgot = "auth:forgot"
	ScopeReset  = "auth:reset"
)

type routerConfig struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	limiter ratelimiter.RateLimiter
}

// RouterOption configures Router.
type RouterOption func(*routerConfig)

// WithLogger sets the logger for request failures.
func WithLogger(l *slog.Logger) RouterOption {
	return func(c *routerConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics counts rate limited requests.
func WithMetrics(m *metrics.Metrics) RouterOption {
	return func(c *routerConfig) {
		c.metrics = m
	}
}

// WithRateLimiter limits the unauthenticated endpoints per client IP, each
// under its own scope.
func WithRateLimiter(rl ratelimiter.RateLimiter) RouterOption {
	return func(c *routerConfig) {
		c.limiter = rl
	}
}

// Router creates the account API router.
//
// Example:
//
//	r := chi.NewRouter()
//	r.Mount("/api/auth", account.Router(svc,
//	    account.WithLogger(log),
//	    account.WithRateLimiter(limiter),
//	))
func Router(svc Service, opts ...RouterOption) chi.Router {
	cfg := &routerConfig{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	h := NewHandler(svc, cfg.logger)
	limit := func(scope string) func(http.Handler) http.Handler {
		if cfg.limiter == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return ratelimiter.Middleware(cfg.limiter,
			ratelimiter.WithScope(scope),
			ratelimiter.WithLogger(cfg.logger),
			ratelimiter.WithMetrics(cfg.metrics),
		)
	}

	r := chi.NewRouter()

	r.With(limit(ScopeSignup)).Post("/signup", handler.Wrap(h.signup,
		handler.WithBinder[handler.Context, signupRequest](binder.JSON()),
		handler.WithErrorHandler[handler.Context, signupRequest](h.renderError),
	))
	r.With(limit(ScopeLogin)).Post("/login", handler.Wrap(h.login,
		handler.WithBinder[handler.Context, loginRequest](binder.JSON()),
		handler.WithErrorHandler[handler.Context, loginRequest](h.renderError),
	))
	r.With(limit(ScopeGoogle)).Post("/google-login", handler.Wrap(h.googleLogin,
		handler.WithBinder[handler.Context, googleLoginRequest](binder.JSON()),
		handler.WithErrorHandler[handler.Context, googleLoginRequest](h.renderError),
	))
	r.With(limit(ScopeForgot)).Post("/forgot-password", handler.Wrap(h.forgotPassword,
		handler.WithBinder[handler.Context, forgotPasswordRequest](binder.JSON()),
		handler.WithErrorHandler[handler.Context, forgotPasswordRequest](h.renderError),
	))
	r.With(limit(ScopeReset)).Post("/reset-password", handler.Wrap(h.resetPassword,
		handler.WithBinder[handler.Context, resetPasswordRequest](binder.JSON()),
		handler.WithErrorHandler[handler.Context, resetPasswordRequest](h.renderError),
	))

	r.Group(func(r chi.Router) {
		r.Use(jwt.Authenticate(h.authenticate, jwt.WithErrorHandler(h.unauthorized)))

		r.Get("/me", handler.Wrap(h.me,
			handler.WithErrorHandler[handler.Context, struct{}](h.renderError),
		))
		r.Put("/update-profile", handler.Wrap(h.updateProfile,
			handler.WithBinder[handler.Context, updateProfileRequest](binder.JSON()),
			handler.WithErrorHandler[handler.Context, updateProfileRequest](h.renderError),
		))
		r.Put("/update-password", handler.Wrap(h.updatePassword,
			handler.WithBinder[handler.Context, updatePasswordRequest](binder.JSON()),
			handler.WithErrorHandler[handler.Context, updatePasswordRequest](h.renderError),
		))
		r.Delete("/delete-account", handler.Wrap(h.deleteAccount,
			handler.WithErrorHandler[handler.Context, struct{}](h.renderError),
		))
	})

	return r
}
