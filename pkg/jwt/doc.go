// Package jwt issues and verifies the stateless HS256 session tokens handed
// out after signup and login.
//
// Tokens carry sub, iss, iat and exp. Verification pins the algorithm to HS256,
// requires exp and checks the issuer, so a token signed with "none" or an RSA
// key is rejected before any claim is trusted.
//
//	svc, err := jwt.New(jwt.Config{Secret: secret})
//	tok, err := svc.Issue(accountID.String())
//	claims, err := svc.Verify(tok.Value)
//
// Authenticate extracts a Bearer token from the Authorization
// header and store the subject in the request context, where handlers read it
// with SubjectFromContext.
package jwt
