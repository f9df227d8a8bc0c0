package crypto

import (
	"bytes"

	"github.com/udisondev/pagelock/internal/constants"
)

var (
	magicPNG  = []byte{0x89, 0x50, 0x4E, 0x47}
	magicJPEG = []byte{0xFF, 0xD8, 0xFF}
	magicGIF  = []byte("GIF8")
	magicRIFF = []byte("RIFF")
	magicWEBP = []byte("WEBP")
)

// SniffMIME detects the image type from magic bytes. Unknown input is reported as JPEG.
func SniffMIME(data []byte) string {
	switch {
	case bytes.HasPrefix(data, magicPNG):
		return constants.MIMEPNG
	case bytes.HasPrefix(data, magicJPEG):
		return constants.MIMEJPEG
	case bytes.HasPrefix(data, magicGIF):
		return constants.MIMEGIF
	case len(data) >= 12 && bytes.Equal(data[:4], magicRIFF) && bytes.Equal(data[8:12], magicWEBP):
		return constants.MIMEWEBP
	default:
		return constants.MIMEJPEG
	}
}

// ExtensionFor maps a MIME type to a file extension without the dot.
func ExtensionFor(mime string) string {
	switch mime {
	case constants.MIMEPNG:
		return "png"
	case constants.MIMEGIF:
		return "gif"
	case constants.MIMEWEBP:
		return "webp"
	default:
		return "jpg"
	}
}
