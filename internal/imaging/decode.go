package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/webp"

	"github.com/udisondev/pagelock/internal/constants"
	"github.com/udisondev/pagelock/internal/crypto"
)

// Decode picks the decoder by magic bytes and returns the image with its MIME type.
func Decode(raw []byte) (image.Image, string, error) {
	mime := crypto.SniffMIME(raw)
	img, err := decodeAs(mime, raw)
	if err != nil {
		return nil, mime, fmt.Errorf("%w: %s: %w", ErrDecode, mime, err)
	}
	return img, mime, nil
}

// DecodeConfig returns the pixel dimensions without decoding the whole image.
func DecodeConfig(raw []byte) (image.Config, string, error) {
	mime := crypto.SniffMIME(raw)
	r := bytes.NewReader(raw)

	var (
		cfg image.Config
		err error
	)
	switch mime {
	case constants.MIMEPNG:
		cfg, err = png.DecodeConfig(r)
	case constants.MIMEGIF:
		cfg, err = gif.DecodeConfig(r)
	case constants.MIMEWEBP:
		cfg, err = webp.DecodeConfig(r)
	default:
		cfg, err = jpeg.DecodeConfig(r)
	}
	if err != nil {
		return image.Config{}, mime, fmt.Errorf("%w: %s config: %w", ErrDecode, mime, err)
	}
	return cfg, mime, nil
}

// decodeBounded checks the header dimensions against constants.MaxImagePixels
// before decoding the pixels.
func decodeBounded(raw []byte) (image.Image, string, error) {
	cfg, _, err := DecodeConfig(raw)
	if err != nil {
		return nil, "", err
	}
	if err := checkPixels(cfg.Width, cfg.Height); err != nil {
		return nil, "", err
	}
	return Decode(raw)
}

func checkPixels(w, h int) error {
	if int64(w)*int64(h) > constants.MaxImagePixels {
		return fmt.Errorf("%w: %dx%d", ErrImageTooLarge, w, h)
	}
	return nil
}

func decodeAs(mime string, raw []byte) (image.Image, error) {
	r := bytes.NewReader(raw)
	switch mime {
	case constants.MIMEPNG:
		return png.Decode(r)
	case constants.MIMEGIF:
		return gif.Decode(r)
	case constants.MIMEWEBP:
		return webp.Decode(r)
	default:
		return jpeg.Decode(r)
	}
}
