package splcrypto

import "errors"

var (
	// ErrBadHex is returned when a hex-encoded field fails to decode.
	ErrBadHex = errors.New("invalid hex encoding")
	// ErrBadKeyLength is returned when decoded key/seed/signature bytes are
	// the wrong length for the primitive being invoked.
	ErrBadKeyLength = errors.New("invalid key length")
)
