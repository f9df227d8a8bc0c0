package keys

import "errors"

var (
	// ErrKeyResolution is returned when key material can not be obtained:
	// auxiliary request failed, response malformed, pattern did not match.
	ErrKeyResolution = errors.New("could not resolve decryption key")

	// ErrKeyNotFound is returned when a mapping or table has no entry for the requested key.
	ErrKeyNotFound = errors.New("key not found")
)
