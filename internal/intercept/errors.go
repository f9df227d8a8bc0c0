package intercept

import "errors"

// ErrBodyTooLarge is returned when an upstream image exceeds the configured body limit.
var ErrBodyTooLarge = errors.New("response body too large")
