package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"sealrelay/internal/domain"
)

const (
	// NonceSize is the AEAD nonce length for every suite.
	NonceSize = 12
	// DigestSize is the length of the integrity tag.
	DigestSize = sha256.Size
)

// GenerateSessionKey returns a fresh random 256-bit session key.
func GenerateSessionKey() (domain.SessionKey, error) {
	var k domain.SessionKey
	if _, err := rand.Read(k[:]); err != nil {
		return domain.SessionKey{}, fmt.Errorf("generate session key: %w", err)
	}
	return k, nil
}

// ExportRaw returns a copy of the key bytes for sealing under an identity key.
func ExportRaw(k domain.SessionKey) []byte {
	out := make([]byte, domain.SessionKeySize)
	copy(out, k[:])
	return out
}

// ImportRaw rebuilds a session key from raw bytes.
func ImportRaw(raw []byte) (domain.SessionKey, error) {
	var k domain.SessionKey
	if len(raw) != domain.SessionKeySize {
		return k, fmt.Errorf("%w: session key is %d bytes, want %d", ErrKeyImport, len(raw), domain.SessionKeySize)
	}
	copy(k[:], raw)
	return k, nil
}

// Digest returns the SHA-256 integrity tag of plaintext.
func Digest(plaintext string) [DigestSize]byte {
	return sha256.Sum256([]byte(plaintext))
}
