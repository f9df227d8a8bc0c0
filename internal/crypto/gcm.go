package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/udisondev/pagelock/internal/constants"
	"github.com/udisondev/pagelock/internal/model"
)

// DeriveKey derives an AES-256 key from passphrase and salt with PBKDF2-HMAC-SHA256.
// iterations <= 0 falls back to the default iteration count.
func DeriveKey(passphrase, salt []byte, iterations int) []byte {
	if iterations <= 0 {
		iterations = constants.PBKDF2Iterations
	}
	return pbkdf2.Key(passphrase, salt, iterations, constants.PBKDF2KeyLength, sha256.New)
}

// DecryptGCM opens blob laid out as nonce(12) || ciphertext || tag.
// The nonce travels in the blob, p.IV is ignored. Zero p.TagSize means 16 bytes.
func DecryptGCM(blob []byte, p model.CipherParams) ([]byte, error) {
	tagSize := p.TagSize
	if tagSize == 0 {
		tagSize = constants.GCMTagSize
	}
	if len(blob) < constants.GCMNonceSize+tagSize {
		return nil, fmt.Errorf("%w: blob of %d bytes is shorter than nonce and tag", ErrDecryption, len(blob))
	}

	block, err := aes.NewCipher(p.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: creating aes cipher: %v", ErrDecryption, err)
	}
	aead, err := cipher.NewGCMWithTagSize(block, tagSize)
	if err != nil {
		return nil, fmt.Errorf("%w: creating gcm: %v", ErrDecryption, err)
	}

	nonce, sealed := blob[:constants.GCMNonceSize], blob[constants.GCMNonceSize:]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	return plain, nil
}
