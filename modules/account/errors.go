package account

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/codeai/handler"
	"github.com/dmitrymomot/codeai/pkg/binder"
	"github.com/dmitrymomot/codeai/pkg/logger"
	accountsvc "github.com/dmitrymomot/codeai/svc/account"
)

// fail maps a service error onto the HTTP error envelope. Internal and
// dependency failures are logged; their causes never reach the client.
func (h *Handler) fail(ctx handler.Context, err error) handler.Response {
	switch kind := accountsvc.KindOf(err); kind {
	case accountsvc.KindValidation:
		return handler.JSONError(err)

	case accountsvc.KindAuthentication:
		switch {
		case errors.Is(err, accountsvc.ErrInvalidResetToken):
			return handler.JSONError(handler.ErrBadRequest.WithMessage(accountsvc.ErrInvalidResetToken.Error()))
		case errors.Is(err, accountsvc.ErrInvalidCredentials):
			return handler.JSONError(handler.ErrUnauthorized.WithMessage(accountsvc.ErrInvalidCredentials.Error()))
		case errors.Is(err, accountsvc.ErrInvalidIdentity):
			return handler.JSONError(handler.ErrUnauthorized.WithMessage("invalid Google credential"))
		default:
			return handler.JSONError(handler.ErrUnauthorized.WithMessage("authentication required"))
		}

	case accountsvc.KindForbidden:
		return handler.JSONError(handler.ErrForbidden.WithMessage(accountsvc.ErrIncorrectPassword.Error()))

	case accountsvc.KindConflict:
		return handler.JSONError(handler.ErrConflict.WithMessage(accountsvc.ErrEmailAlreadyExists.Error()))

	case accountsvc.KindNotFound:
		return handler.JSONError(handler.ErrNotFound.WithMessage(accountsvc.ErrAccountNotFound.Error()))

	case accountsvc.KindDependency:
		h.logger.WarnContext(ctx, "dependency unavailable",
			logger.Error(err),
			logger.Kind(kind.String()),
			logger.Component("account_http"),
		)
		return handler.JSONError(handler.ErrServiceUnavailable.WithMessage("service temporarily unavailable, try again later"))

	default:
		if isBindError(err) {
			return handler.JSONError(err)
		}
		h.logger.ErrorContext(ctx, "request failed",
			logger.Error(err),
			logger.Kind(kind.String()),
			logger.Component("account_http"),
			slog.String("path", ctx.Request().URL.Path),
		)
		return handler.JSONError(handler.ErrInternalServerError.WithMessage("internal server error"))
	}
}

// renderError is the handler.ErrorHandler for bind and render failures.
func (h *Handler) renderError(ctx handler.Context, err error) {
	_ = h.fail(ctx, err).Render(ctx.ResponseWriter(), ctx.Request())
}

// unauthorized renders jwt middleware rejections.
func (h *Handler) unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	if accountsvc.KindOf(err) == accountsvc.KindDependency {
		_ = h.fail(handler.NewContext(w, r), err).Render(w, r)
		return
	}
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	_ = handler.JSONError(handler.ErrUnauthorized.WithMessage("authentication required")).Render(w, r)
}

func isBindError(err error) bool {
	return errors.Is(err, binder.ErrFailedToParseJSON) ||
		errors.Is(err, binder.ErrMissingContentType) ||
		errors.Is(err, binder.ErrUnsupportedMediaType) ||
		errors.Is(err, binder.ErrBodyTooLarge)
}
