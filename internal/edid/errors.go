package edid

import "errors"

var (
	// ErrInvalidMode means the requested width/height/refresh cannot be
	// represented in the binary timing fields.
	ErrInvalidMode = errors.New("edid: invalid display mode")
)
