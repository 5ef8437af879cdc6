// Package account exposes the account lifecycle over HTTP.
//
// Router returns a chi router meant to be mounted under /api/auth:
//
//	POST   /signup           {name, email, password}
//	POST   /login            {email, password}
//	POST   /google-login     {tokenId} or {code}
//	POST   /forgot-password  {email}
//	POST   /reset-password   {token, newPassword}
//	GET    /me               (bearer)
//	PUT    /update-profile   {name?, avatar?} (bearer)
//	PUT    /update-password  {current, newPass} (bearer)
//	DELETE /delete-account   (bearer)
//
// Bearer routes run behind the jwt middleware, which asks the service to
// verify the token and stores the account id as the request subject. The
// unauthenticated routes can be rate limited per client IP with
// WithRateLimiter; each route gets its own scope.
//
// Service errors are mapped by their account.Kind: validation 422,
// authentication 401, an unusable reset token 400, wrong current password
// 403, duplicate email 409, missing account 404, unavailable dependency 503
// and anything else 500. forgot-password answers the same message whether
// or not the email is registered.
package account
