package secret

import "errors"

var (
	// ErrCrypto is returned for every failed cryptographic operation.
	ErrCrypto = errors.New("cryptographic operation failed")
	// ErrKeyTooShort is returned when a master key is below the minimum length.
	ErrKeyTooShort = errors.New("secret key too short")
)
