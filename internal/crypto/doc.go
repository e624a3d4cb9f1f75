// Package crypto exposes the primitives used by sealrelay.
//
// Contents
//
//   - RSA-2048 identity keys with OAEP/SHA-256 sealing of session keys
//     (GenerateIdentity, SealSessionKey, OpenSessionKey)
//   - 256-bit AEAD session keys and message sealing with a SHA-256
//     integrity tag (GenerateSessionKey, Suite.Seal, Suite.Open)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// Handshake failures surface as ErrKeyImport, ErrPayloadTooLarge or
// ErrDecryption. Message failures never surface as errors: Open reports
// them through domain.PlaintextResult.Tampered.
package crypto
