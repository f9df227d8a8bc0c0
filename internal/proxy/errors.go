package proxy

import "errors"

// ErrBadPageURL is returned for a missing or non-http page url parameter.
var ErrBadPageURL = errors.New("page url must be an absolute http(s) url")
