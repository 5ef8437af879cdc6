package googleid

import "errors"

var (
	ErrMissingClientID      = errors.New("googleid: missing client id")
	ErrInvalidIdentityToken = errors.New("googleid: invalid identity token")
	ErrEmailNotVerified     = errors.New("googleid: email not verified")
	ErrKeysUnavailable      = errors.New("googleid: signing keys unavailable")
	ErrCodeFlowDisabled     = errors.New("googleid: authorization code flow is not configured")
	ErrInvalidAuthCode      = errors.New("googleid: invalid authorization code")
)
