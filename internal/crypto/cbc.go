package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"github.com/udisondev/pagelock/internal/constants"
	"github.com/udisondev/pagelock/internal/model"
)

// DecryptCBC decrypts AES-CBC ciphertext and strips PKCS#7 padding.
// p.Key must be 16, 24 or 32 bytes, p.IV exactly one block.
func DecryptCBC(data []byte, p model.CipherParams) ([]byte, error) {
	block, err := aes.NewCipher(p.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: creating aes cipher: %v", ErrDecryption, err)
	}
	if len(p.IV) != constants.AESBlockSize {
		return nil, fmt.Errorf("%w: iv length %d, want %d", ErrDecryption, len(p.IV), constants.AESBlockSize)
	}
	if len(data) == 0 || len(data)%constants.AESBlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d is not a multiple of %d", ErrDecryption, len(data), constants.AESBlockSize)
	}

	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, p.IV).CryptBlocks(out, data)
	return unpadPKCS7(out, constants.AESBlockSize)
}

// unpadPKCS7 checks every padding byte, not only the last one.
func unpadPKCS7(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty plaintext", ErrInvalidPadding)
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("%w: pad length %d", ErrInvalidPadding, n)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: pad byte 0x%02x, want 0x%02x", ErrInvalidPadding, b, n)
		}
	}
	return data[:len(data)-n], nil
}
