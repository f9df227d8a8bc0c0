package geometry

import "errors"

// Sentinel errors for plan building.
var (
	ErrUnsupportedVariant = errors.New("unsupported scramble variant")
	ErrDegenerateGeometry = errors.New("degenerate tile geometry")
	ErrInvalidDimensions  = errors.New("invalid image dimensions")
)
