// Package handler provides type-safe JSON HTTP handlers.
//
// A handler is a generic function from a request context and a bound request
// value to a Response. Wrap turns it into an http.HandlerFunc, running the
// configured binders first and routing bind and render failures to an
// ErrorHandler:
//
//	type loginRequest struct {
//		Email    string `json:"email"`
//		Password string `json:"password"`
//	}
//
//	func (h *Handler) login(ctx handler.Context, req loginRequest) handler.Response {
//		res, err := h.svc.Login(ctx, req.Email, req.Password)
//		if err != nil {
//			return handler.JSONError(err)
//		}
//		return handler.JSON(res)
//	}
//
//	r.Post("/login", handler.Wrap(h.login,
//		handler.WithBinder[handler.Context, loginRequest](binder.JSON()),
//	))
//
// # Responses
//
// JSON writes the value as the body. JSONError writes
//
//	{"error": {"code": "...", "message": "...", "details": {"field": ["..."]}}}
//
// picking the status from the error: validator.ValidationErrors become 422
// with details, HTTPError values carry their own status, binder failures map
// to 400/413/415 and everything else is a 500 whose cause is not exposed.
//
// # Context
//
// Context embeds the request's context.Context, so it can be passed directly
// to services. Custom context types are supported through WithContextFactory.
package handler
