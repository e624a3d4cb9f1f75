package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"sealrelay/internal/domain"
)

// Suite names the AEAD used for message traffic. Both peers must agree.
type Suite string

const (
	SuiteAESGCM           Suite = "aes-256-gcm"
	SuiteChaCha20Poly1305 Suite = "chacha20-poly1305"

	DefaultSuite = SuiteAESGCM
)

// ParseSuite maps a configured name to a Suite. The empty string selects
// DefaultSuite.
func ParseSuite(name string) (Suite, error) {
	switch Suite(name) {
	case "":
		return DefaultSuite, nil
	case SuiteAESGCM, SuiteChaCha20Poly1305:
		return Suite(name), nil
	default:
		return "", fmt.Errorf("crypto: unknown cipher suite %q", name)
	}
}

func (s Suite) aead(key domain.SessionKey) (cipher.AEAD, error) {
	switch s {
	case SuiteAESGCM, "":
		block, err := aes.NewCipher(key[:])
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	case SuiteChaCha20Poly1305:
		return chacha20poly1305.New(key[:])
	default:
		return nil, fmt.Errorf("crypto: unknown cipher suite %q", string(s))
	}
}

// Seal encrypts plaintext under key with a fresh random nonce. The SHA-256
// digest of the plaintext travels as IntegrityTag and is bound into the AEAD
// as associated data.
func (s Suite) Seal(plaintext string, key domain.SessionKey) (domain.EncryptedEnvelope, error) {
	aead, err := s.aead(key)
	if err != nil {
		return domain.EncryptedEnvelope{}, err
	}
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return domain.EncryptedEnvelope{}, fmt.Errorf("generate nonce: %w", err)
	}
	tag := Digest(plaintext)
	ct := aead.Seal(nil, nonce, []byte(plaintext), tag[:])
	return domain.EncryptedEnvelope{
		Ciphertext:   B64(ct),
		Nonce:        B64(nonce),
		IntegrityTag: B64(tag[:]),
	}, nil
}

// Open decrypts env under key. Any failure, including a digest mismatch after
// successful decryption, yields the tamper result.
func (s Suite) Open(env domain.EncryptedEnvelope, key domain.SessionKey) domain.PlaintextResult {
	pt, ok := s.open(env, key)
	if !ok {
		return domain.PlaintextResult{Text: domain.TamperText, Tampered: true}
	}
	return domain.PlaintextResult{Text: pt}
}

func (s Suite) open(env domain.EncryptedEnvelope, key domain.SessionKey) (string, bool) {
	nonce, err := UnB64(env.Nonce)
	if err != nil || len(nonce) != NonceSize {
		return "", false
	}
	tag, err := UnB64(env.IntegrityTag)
	if err != nil || len(tag) != DigestSize {
		return "", false
	}
	ct, err := UnB64(env.Ciphertext)
	if err != nil {
		return "", false
	}
	aead, err := s.aead(key)
	if err != nil {
		return "", false
	}
	pt, err := aead.Open(nil, nonce, ct, tag)
	if err != nil {
		return "", false
	}
	// Recheck the digest independently of the AEAD.
	got := Digest(string(pt))
	if subtle.ConstantTimeCompare(got[:], tag) != 1 {
		return "", false
	}
	return string(pt), true
}

// Seal is DefaultSuite.Seal.
func Seal(plaintext string, key domain.SessionKey) (domain.EncryptedEnvelope, error) {
	return DefaultSuite.Seal(plaintext, key)
}

// Open is DefaultSuite.Open.
func Open(env domain.EncryptedEnvelope, key domain.SessionKey) domain.PlaintextResult {
	return DefaultSuite.Open(env, key)
}
