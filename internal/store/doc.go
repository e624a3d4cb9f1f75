// Package store holds sealrelay's client-side state.
//
// It contains concrete implementations of the domain storage interfaces:
//   - PeerDirectory: the in-memory, per-connection directory of peers,
//     their handshake state, session keys and message history.
//   - IdentityFileStore: an optional passphrase-protected keystore for the
//     RSA identity key, sealed with scrypt and ChaCha20-Poly1305.
//
// All methods are concurrency-safe via internal locking.
package store
