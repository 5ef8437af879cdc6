// Package googleid verifies Google Sign-In ID tokens.
//
// Verifier checks the RS256 signature against Google's published JWKS, the
// audience against the configured client id, the issuer, expiry and (by
// default) that Google verified the email. Keys are cached for the max-age
// Google advertises and refetched when a token names an unknown key id. Key
// fetches go through a circuit breaker so an outage at Google fails fast with
// ErrKeysUnavailable instead of piling up slow requests.
//
// CodeExchanger supports the authorization-code variant of the popup flow:
// the code is redeemed through golang.org/x/oauth2 and the returned ID token
// goes through the same Verifier.
package googleid
