package imaging

import "errors"

var (
	// ErrDecode wraps the underlying decoder error when fetched bytes are not a valid image.
	ErrDecode = errors.New("image decode failed")

	// ErrEncode is returned when the restored canvas can not be encoded.
	ErrEncode = errors.New("image encode failed")

	// ErrEmptyCanvas is returned for a plan whose canvas has no pixels.
	ErrEmptyCanvas = errors.New("empty canvas")

	// ErrImageTooLarge is returned before allocating a source or canvas over constants.MaxImagePixels.
	ErrImageTooLarge = errors.New("image too large")
)
