// Package memzero wipes secrets from memory on a best-effort basis.
package memzero

import (
	"crypto/subtle"

	"sealrelay/internal/domain"
)

// Zero overwrites b with zeros in a constant-time friendly way.
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	zero := make([]byte, len(b))
	subtle.ConstantTimeCopy(1, b, zero)
}

// Key wipes a session key in place.
func Key(k *domain.SessionKey) {
	if k == nil {
		return
	}
	Zero(k[:])
}
