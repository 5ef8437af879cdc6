package resettoken

import "errors"

var ErrGenerateFailed = errors.New("resettoken: failed to generate token")
