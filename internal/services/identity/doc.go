// Package identity manages the local RSA identity key pair.
//
// By default a fresh pair is generated for every process start. When a
// keystore is configured the pair can instead be created once, sealed under
// a passphrase that satisfies the strength policy, and loaded on later runs.
package identity
