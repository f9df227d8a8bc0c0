package keys

import (
	"encoding/hex"
	"fmt"

	"github.com/udisondev/pagelock/internal/constants"
	"github.com/udisondev/pagelock/internal/crypto"
	"github.com/udisondev/pagelock/internal/model"
)

// ParseHexCipher decodes a hex key and iv carried in the page URL.
func ParseHexCipher(keyHex, ivHex string) (model.CipherParams, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return model.CipherParams{}, fmt.Errorf("%w: key is not hex: %v", ErrKeyResolution, err)
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return model.CipherParams{}, fmt.Errorf("%w: iv is not hex: %v", ErrKeyResolution, err)
	}

	switch len(key) {
	case 16, 24, 32:
	default:
		return model.CipherParams{}, fmt.Errorf("%w: key length %d", ErrKeyResolution, len(key))
	}
	if len(iv) != constants.AESBlockSize {
		return model.CipherParams{}, fmt.Errorf("%w: iv length %d", ErrKeyResolution, len(iv))
	}
	return model.CipherParams{Key: key, IV: iv}, nil
}

// LiteralCipher uses the UTF-8 bytes of key with the fixed ASCII zero IV.
func LiteralCipher(key string) (model.CipherParams, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return model.CipherParams{}, fmt.Errorf("%w: literal key length %d", ErrKeyResolution, len(key))
	}
	return model.CipherParams{Key: []byte(key), IV: []byte(constants.ColaMangaIV)}, nil
}

// PassphraseCipher derives an AES-GCM key from a static passphrase and salt.
func PassphraseCipher(passphrase, salt string, iterations int) (model.CipherParams, error) {
	if passphrase == "" {
		return model.CipherParams{}, fmt.Errorf("%w: empty passphrase", ErrKeyResolution)
	}
	return model.CipherParams{
		Key:     crypto.DeriveKey([]byte(passphrase), []byte(salt), iterations),
		TagSize: constants.GCMTagSize,
	}, nil
}

// ParseXORKey decodes a hex XOR key. limit > 0 keeps only the first limit bytes.
func ParseXORKey(keyHex string, limit int) ([]byte, error) {
	if limit > 0 && len(keyHex) > 2*limit {
		keyHex = keyHex[:2*limit]
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: xor key is not hex: %v", ErrKeyResolution, err)
	}
	if len(key) == 0 || (limit > 0 && len(key) < limit) {
		return nil, fmt.Errorf("%w: xor key of %d bytes", ErrKeyResolution, len(key))
	}
	return key, nil
}
