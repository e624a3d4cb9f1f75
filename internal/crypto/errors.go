package crypto

import "errors"

var (
	// ErrKeyImport is returned for malformed or unsupported key material.
	ErrKeyImport = errors.New("crypto: key import failed")

	// ErrPayloadTooLarge is returned when a payload exceeds what the identity
	// key can seal in one block.
	ErrPayloadTooLarge = errors.New("crypto: payload too large")

	// ErrDecryption covers every failure to open a sealed session key. The
	// cause is deliberately not distinguished.
	ErrDecryption = errors.New("crypto: decryption failed")
)
