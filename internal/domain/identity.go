package domain

import "crypto/rsa"

// PeerID is the opaque connection identifier assigned by the relay.
type PeerID string

// PublicKey is a base64 encoded DER SubjectPublicKeyInfo.
type PublicKey string

// Fingerprint is a short hex digest of a public key, for display only.
type Fingerprint string

// Identity is the public record the relay holds for a joined connection.
// It is immutable for the lifetime of the connection.
type Identity struct {
	ID          PeerID    `json:"id" cbor:"id"`
	DisplayName string    `json:"displayName" cbor:"displayName"`
	PublicKey   PublicKey `json:"publicKey" cbor:"publicKey"`
}

// PrivateIdentity is the local identity key pair. It is never transmitted.
type PrivateIdentity struct {
	PublicKey  PublicKey
	PrivateKey *rsa.PrivateKey
}
