package binder

import "errors"

// Common binding errors
var (
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrFailedToParseJSON    = errors.New("failed to parse JSON request body")
	ErrMissingContentType   = errors.New("missing content type")
	ErrBodyTooLarge         = errors.New("request body too large")

	// ErrBinderNotApplicable tells the caller to skip this binder for the
	// request, e.g. a bodyless GET handed to the JSON binder.
	ErrBinderNotApplicable = errors.New("binder not applicable to this request")
)
