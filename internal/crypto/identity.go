package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"fmt"

	"sealrelay/internal/domain"
)

const (
	// IdentityKeyBits is the modulus size of identity keys.
	IdentityKeyBits = 2048

	// oaepOverhead is 2*hLen + 2 for OAEP with SHA-256.
	oaepOverhead = 2*sha256.Size + 2
)

// GenerateIdentity returns a fresh RSA-2048 identity key pair with the public
// half exported as base64 SubjectPublicKeyInfo.
func GenerateIdentity() (domain.PrivateIdentity, error) {
	priv, err := rsa.GenerateKey(rand.Reader, IdentityKeyBits)
	if err != nil {
		return domain.PrivateIdentity{}, fmt.Errorf("generate identity key: %w", err)
	}
	pub, err := ExportPublicKey(&priv.PublicKey)
	if err != nil {
		return domain.PrivateIdentity{}, err
	}
	return domain.PrivateIdentity{PublicKey: pub, PrivateKey: priv}, nil
}

// ExportPublicKey encodes pub as base64 DER SubjectPublicKeyInfo.
func ExportPublicKey(pub *rsa.PublicKey) (domain.PublicKey, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("export public key: %w", err)
	}
	return domain.PublicKey(B64(der)), nil
}

// ImportPublicKey parses a base64 SubjectPublicKeyInfo RSA key of at least
// IdentityKeyBits.
func ImportPublicKey(pub domain.PublicKey) (*rsa.PublicKey, error) {
	der, err := UnB64(string(pub))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyImport, err)
	}
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyImport, err)
	}
	rsaKey, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA key (%T)", ErrKeyImport, key)
	}
	if rsaKey.N.BitLen() < IdentityKeyBits {
		return nil, fmt.Errorf("%w: %d-bit modulus", ErrKeyImport, rsaKey.N.BitLen())
	}
	return rsaKey, nil
}

// MaxSealSize returns the largest payload OAEP/SHA-256 can seal under pub.
func MaxSealSize(pub *rsa.PublicKey) int {
	return pub.Size() - oaepOverhead
}

// SealSessionKey encrypts raw under the recipient's public key.
func SealSessionKey(raw []byte, recipient domain.PublicKey) ([]byte, error) {
	pub, err := ImportPublicKey(recipient)
	if err != nil {
		return nil, err
	}
	if len(raw) > MaxSealSize(pub) {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrPayloadTooLarge, len(raw), MaxSealSize(pub))
	}
	ct, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, raw, nil)
	if err != nil {
		return nil, fmt.Errorf("seal session key: %w", err)
	}
	return ct, nil
}

// OpenSessionKey decrypts a sealed session key. All failures are reported as
// ErrDecryption.
func OpenSessionKey(ct []byte, priv *rsa.PrivateKey) ([]byte, error) {
	if priv == nil {
		return nil, ErrDecryption
	}
	raw, err := rsa.DecryptOAEP(sha256.New(), nil, priv, ct, nil)
	if err != nil {
		return nil, ErrDecryption
	}
	return raw, nil
}

// MarshalPrivateKey encodes priv as PKCS#8 DER.
func MarshalPrivateKey(priv *rsa.PrivateKey) ([]byte, error) {
	return x509.MarshalPKCS8PrivateKey(priv)
}

// ParsePrivateKey rebuilds a PrivateIdentity from PKCS#8 DER.
func ParsePrivateKey(der []byte) (domain.PrivateIdentity, error) {
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return domain.PrivateIdentity{}, fmt.Errorf("%w: %v", ErrKeyImport, err)
	}
	priv, ok := key.(*rsa.PrivateKey)
	if !ok {
		return domain.PrivateIdentity{}, fmt.Errorf("%w: not an RSA key (%T)", ErrKeyImport, key)
	}
	pub, err := ExportPublicKey(&priv.PublicKey)
	if err != nil {
		return domain.PrivateIdentity{}, err
	}
	return domain.PrivateIdentity{PublicKey: pub, PrivateKey: priv}, nil
}
