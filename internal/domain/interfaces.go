package domain

import "context"

// IdentityStore persists your long-term identity keys.
type IdentityStore interface {
	SaveIdentity(passphrase string, id PrivateIdentity) error
	LoadIdentity(passphrase string) (PrivateIdentity, error)
}

// PeerStore is the per-connection directory of known peers.
//
// All methods are safe for concurrent use. Session key slots follow
// set-if-empty semantics: once a record holds a key it is never replaced.
type PeerStore interface {
	ApplyDirectory(self PeerID, peers []Identity)
	Peer(id PeerID) (PeerRecord, bool)
	Peers() []PeerRecord

	// BeginHandshake moves a Known record to SessionPending. It reports false
	// without error when the record is already pending or established.
	BeginHandshake(id PeerID) (Identity, bool, error)
	// ProposeSessionKey stores a locally generated key on a pending record.
	ProposeSessionKey(id PeerID, key SessionKey) bool
	MarkEstablished(id PeerID)
	AbortHandshake(id PeerID)
	// SetSessionKeyIfAbsent stores a received key and marks the record
	// established, materializing the record if needed.
	SetSessionKeyIfAbsent(id PeerID, key SessionKey) bool
	SessionKey(id PeerID) (SessionKey, bool)

	AppendMessage(id PeerID, msg Message) error
}

// IdentityService creates, loads and inspects the local identity.
type IdentityService interface {
	Generate() (PrivateIdentity, Fingerprint, error)
	Create(passphrase string) (PrivateIdentity, Fingerprint, error)
	Load(passphrase string) (PrivateIdentity, error)
	Fingerprint(pub PublicKey) (Fingerprint, error)
}

// SessionService runs the lazy session-key handshake.
type SessionService interface {
	Initiate(ctx context.Context, peer PeerID) (bool, error)
	Accept(env SessionKeyEnvelope) error
}

// MessageService seals outgoing text and opens incoming envelopes.
type MessageService interface {
	Send(ctx context.Context, to PeerID, text string) (Message, error)
	Receive(env EncryptedEnvelope) (Message, error)
}
