package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrymomot/codeai/pkg/binder"
	"github.com/dmitrymomot/codeai/pkg/validator"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Details map[string][]string `json:"details,omitempty"`
}

// jsonResponse implements Response for JSON rendering
type jsonResponse struct {
	status int
	body   any
}

func (j jsonResponse) Render(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSONOption configures JSON response
type JSONOption func(*jsonResponse)

// WithJSONStatus sets custom HTTP status code
func WithJSONStatus(status int) JSONOption {
	return func(r *jsonResponse) {
		r.status = status
	}
}

// JSON renders v as the response body with status 200.
func JSON(v any, opts ...JSONOption) Response {
	r := &jsonResponse{status: http.StatusOK, body: v}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// JSONError renders err inside the error envelope.
//
//   - validator.ValidationErrors: 422 with per-field details
//   - HTTPError: its code and key, its message or the status text
//   - binder errors: 400, 413 or 415
//   - anything else: 500 with a generic message, the cause is not exposed
func JSONError(err error, opts ...JSONOption) Response {
	r := &jsonResponse{}
	detail := errorToDetail(err, &r.status)
	r.body = ErrorResponse{Error: detail}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// errorToDetail converts error to ErrorDetail and sets appropriate status
func errorToDetail(err error, status *int) ErrorDetail {
	if ve := validator.ExtractValidationErrors(err); ve != nil {
		*status = http.StatusUnprocessableEntity
		return ErrorDetail{
			Code:    "validation_error",
			Message: "validation failed",
			Details: ve.ToMap(),
		}
	}

	var httpErr HTTPError
	if !errors.As(err, &httpErr) {
		httpErr = binderError(err)
	}

	*status = httpErr.Code
	message := httpErr.Message
	if message == "" {
		message = http.StatusText(httpErr.Code)
	}
	return ErrorDetail{Code: httpErr.Key, Message: message}
}

func binderError(err error) HTTPError {
	switch {
	case errors.Is(err, binder.ErrBodyTooLarge):
		return ErrRequestTooLarge
	case errors.Is(err, binder.ErrUnsupportedMediaType):
		return ErrUnsupportedMediaType
	case errors.Is(err, binder.ErrMissingContentType),
		errors.Is(err, binder.ErrFailedToParseJSON):
		return ErrBadRequest.WithMessage("malformed request body")
	default:
		return ErrInternalServerError.WithMessage("internal server error")
	}
}
