// Package binder decodes HTTP request bodies into Go structs.
//
// JSON returns a binder with the signature handler.Wrap expects. It checks
// the media type, enforces a body size limit (DefaultMaxJSONSize unless
// WithMaxSize is given), rejects trailing data after the object and can
// reject unknown fields with WithStrict.
//
//	type signupRequest struct {
//	    Name     string `json:"name"`
//	    Email    string `json:"email"`
//	    Password string `json:"password"`
//	}
//
//	r.Post("/signup", handler.Wrap(h.signup,
//	    handler.WithBinder[handler.Context, signupRequest](binder.JSON()),
//	))
//
// Failures wrap one of the package errors, so error handlers can map them to
// status codes with errors.Is:
//
//	switch {
//	case errors.Is(err, binder.ErrUnsupportedMediaType):
//	    // 415
//	case errors.Is(err, binder.ErrBodyTooLarge):
//	    // 413
//	case errors.Is(err, binder.ErrFailedToParseJSON):
//	    // 400
//	}
//
// Validation is not the binder's job; run pkg/validator on the decoded value.
package binder
