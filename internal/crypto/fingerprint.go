package crypto

import (
	"crypto/sha256"
	"encoding/hex"

	"sealrelay/internal/domain"
)

// Fingerprint returns a short hex fingerprint of a public key.
//
// It hashes the DER encoding with SHA-256 and truncates to 10 bytes (20 hex
// chars). Keys that are not valid base64 are hashed as given.
func Fingerprint(pub domain.PublicKey) domain.Fingerprint {
	der, err := UnB64(string(pub))
	if err != nil {
		der = []byte(pub)
	}
	sum := sha256.Sum256(der)
	return domain.Fingerprint(hex.EncodeToString(sum[:10]))
}
