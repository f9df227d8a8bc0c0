package constants

import "time"

// Image scrambling constants
//
// These values are fixed by the reader scripts of the sites that scramble page images.
// Changing any of them breaks descrambling of real pages.

// Grid transpose (GigaViewer) constants
const (
	// GridDivisions is the number of cells per grid side (4x4 grid).
	GridDivisions = 4

	// GridCellMultiple aligns every grid cell dimension down to a multiple of 8 pixels.
	GridCellMultiple = 8
)

// SpeedBinb constants
const (
	// PtBinbFragmentTag prefixes the URL fragment carrying an embedded s/u token pair.
	PtBinbFragmentTag = "ptbinb"

	// PtBinbTableFragmentTag prefixes the URL fragment that asks for a table lookup by cid.
	PtBinbTableFragmentTag = "ptbinb-table"

	// KeyTableSize is the modulus used when selecting ptbl/ctbl entries from a filename.
	KeyTableSize = 8

	// SharedKeyRandomLength is the number of random characters in a generated shared key.
	SharedKeyRandomLength = 16

	// ScrambleTableSeedFallback replaces a zero seed in the table decoding stream.
	ScrambleTableSeedFallback = 0x12345678

	// ScrambleTableFeedback is the feedback mask of the table decoding stream.
	ScrambleTableFeedback = 1210056708

	// PtBinbAMinSize is the minimum side of an image descrambled with the numeric variant.
	PtBinbAMinSize = 64

	// PtBinbAMinArea is the minimum pixel area of an image descrambled with the numeric variant.
	PtBinbAMinArea = 102400

	// PtBinbFMinPieces is the minimum number of pieces per side for the '=' variant.
	PtBinbFMinPieces = 8
)

// Seeded shuffle (MagazinePocket) constants
const (
	ShuffleFragmentKey = "scramble_seed"
)

// Cipher constants
const (
	// AESBlockSize is the AES block size in bytes.
	AESBlockSize = 16

	// GCMNonceSize is the length of the nonce prefixed to AES-GCM page payloads.
	GCMNonceSize = 12

	// GCMTagSize is the authentication tag length appended to AES-GCM ciphertext.
	GCMTagSize = 16

	// PBKDF2Iterations is the default iteration count for AES-GCM key derivation.
	PBKDF2Iterations = 30000

	// PBKDF2KeyLength is the derived key length in bytes (AES-256).
	PBKDF2KeyLength = 32

	// ColaMangaIV is the fixed ASCII IV used by ColaManga AES-CBC pages.
	ColaMangaIV = "0000000000000000"

	// NicovideoKeyLength is the number of XOR key bytes taken from the URL path.
	NicovideoKeyLength = 8
)

// Key resolution constants
const (
	// KeyFetchTimeout bounds one auxiliary key material request.
	KeyFetchTimeout = 30 * time.Second

	// MaxKeyResponseBytes limits content info and script responses.
	MaxKeyResponseBytes = 4 << 20
)

// Output constants
const (
	// DefaultJPEGQuality is the quality used when re-encoding descrambled pages.
	DefaultJPEGQuality = 90

	// MaxImageBytes limits how much of an upstream image body is read into memory.
	MaxImageBytes = 64 << 20

	// MaxImagePixels limits decoded and composed canvases (about 256 MiB as RGBA).
	MaxImagePixels = 64 << 20
)

// MIME types reported for restored images.
const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEGIF  = "image/gif"
	MIMEWEBP = "image/webp"
)
