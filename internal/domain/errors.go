package domain

import "errors"

var (
	// ErrUnknownPeer is returned for ids with no record in the peer directory.
	ErrUnknownPeer = errors.New("unknown peer")

	// ErrNoPublicKey is returned when a handshake targets a peer whose
	// identity has not been published yet.
	ErrNoPublicKey = errors.New("peer has no published public key")
)
