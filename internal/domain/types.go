package domain

// SessionKeyEnvelope carries a session key sealed under the recipient's
// identity key. From is stamped by the relay.
type SessionKeyEnvelope struct {
	To      PeerID `json:"to,omitempty" cbor:"to,omitempty"`
	From    PeerID `json:"from,omitempty" cbor:"from,omitempty"`
	Payload string `json:"payload" cbor:"payload"`
}

// EncryptedEnvelope is an AEAD sealed text message. IntegrityTag is the
// SHA-256 digest of the plaintext and never covers To/From.
type EncryptedEnvelope struct {
	To           PeerID `json:"to,omitempty" cbor:"to,omitempty"`
	From         PeerID `json:"from,omitempty" cbor:"from,omitempty"`
	Ciphertext   string `json:"ciphertext" cbor:"ciphertext"`
	Nonce        string `json:"nonce" cbor:"nonce"`
	IntegrityTag string `json:"integrityTag" cbor:"integrityTag"`
}
