package crypto

import "errors"

var (
	// ErrDecryption is returned when ciphertext can not be decrypted at all:
	// wrong key length, ciphertext not aligned to the block size and so on.
	ErrDecryption = errors.New("decryption failed")

	// ErrInvalidPadding is returned when PKCS#7 padding is malformed after CBC decryption.
	ErrInvalidPadding = errors.New("invalid padding")

	// ErrAuthentication is returned when the GCM tag does not verify.
	ErrAuthentication = errors.New("authentication failed")
)
