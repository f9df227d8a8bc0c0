package model

import "fmt"

// Strategy identifies which geometry or cipher implementation restores an image.
// Exactly one implementation exists per strategy.
type Strategy int

const (
	// StrategyNone marks an image that is served unmodified.
	StrategyNone Strategy = iota
	// StrategyGridTranspose transposes a fixed 4x4 grid of cells (GigaViewer).
	StrategyGridTranspose
	// StrategySeededShuffle permutes a 4x4 grid with an xorshift32 seeded order (MagazinePocket).
	StrategySeededShuffle
	// StrategyCoordTableAlpha decodes '=' prefixed SpeedBinb tokens.
	StrategyCoordTableAlpha
	// StrategyCoordTableNumeric decodes digit prefixed SpeedBinb tokens.
	StrategyCoordTableNumeric
	// StrategyAESCBC decrypts the whole body with AES-CBC and PKCS7 padding.
	StrategyAESCBC
	// StrategyAESGCM decrypts an IV-prefixed AES-GCM body with a PBKDF2 derived key.
	StrategyAESGCM
	// StrategyXOR applies a cyclic XOR key to the whole body.
	StrategyXOR
)

var strategyNames = [...]string{
	StrategyNone:              "none",
	StrategyGridTranspose:     "grid-transpose",
	StrategySeededShuffle:     "seeded-shuffle",
	StrategyCoordTableAlpha:   "coord-table-alpha",
	StrategyCoordTableNumeric: "coord-table-numeric",
	StrategyAESCBC:            "aes-cbc",
	StrategyAESGCM:            "aes-gcm",
	StrategyXOR:               "xor",
}

func (s Strategy) String() string {
	if s < 0 || int(s) >= len(strategyNames) {
		return fmt.Sprintf("strategy(%d)", int(s))
	}
	return strategyNames[s]
}

// IsGeometry reports whether the strategy rearranges decoded pixels.
func (s Strategy) IsGeometry() bool {
	switch s {
	case StrategyGridTranspose, StrategySeededShuffle, StrategyCoordTableAlpha, StrategyCoordTableNumeric:
		return true
	}
	return false
}

// IsCipher reports whether the strategy transforms the raw byte stream.
func (s Strategy) IsCipher() bool {
	switch s {
	case StrategyAESCBC, StrategyAESGCM, StrategyXOR:
		return true
	}
	return false
}

// ScrambleSpec carries the parameters extracted for one image request.
// It is built once per request and never mutated afterwards.
type ScrambleSpec struct {
	Strategy Strategy

	// S and U are the SpeedBinb token pair.
	S string
	U string

	// Seed drives the seeded shuffle.
	Seed uint32

	// Width and Height are the declared output size for grid transposes.
	// Zero means "use the decoded image size".
	Width  int
	Height int

	// Cipher holds key material for cipher strategies.
	Cipher CipherParams

	// XORKey is the cyclic key for StrategyXOR.
	XORKey []byte
}

// IsZero reports whether the spec selects no transformation.
func (s ScrambleSpec) IsZero() bool {
	return s.Strategy == StrategyNone
}
