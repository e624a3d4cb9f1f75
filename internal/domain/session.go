package domain

import (
	"fmt"
	"time"
)

// SessionKeySize is the length of a raw symmetric session key.
const SessionKeySize = 32

// SessionKey is a raw 256-bit AEAD key shared by one ordered pair of peers.
type SessionKey [SessionKeySize]byte

// Slice returns the key as a []byte.
func (k SessionKey) Slice() []byte { return k[:] }

// PeerState tracks handshake progress for a single peer.
type PeerState uint8

const (
	StateUnknown PeerState = iota
	StateKnown
	StateSessionPending
	StateEstablished
)

func (s PeerState) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateKnown:
		return "known"
	case StateSessionPending:
		return "session-pending"
	case StateEstablished:
		return "established"
	default:
		return fmt.Sprintf("PeerState(%d)", uint8(s))
	}
}

// Direction records whether a message was sent or received locally.
type Direction uint8

const (
	Sent Direction = iota + 1
	Received
)

func (d Direction) String() string {
	if d == Sent {
		return "sent"
	}
	return "received"
}

// TamperText replaces the body of any message that failed decryption or
// integrity verification.
const TamperText = "[Decryption Error or Tampered Message]"

// Message is one entry in a peer's history. Immutable once appended.
type Message struct {
	Sender      string
	Text        string
	Direction   Direction
	IntegrityOK bool
	At          time.Time
}

// PlaintextResult is the outcome of opening an EncryptedEnvelope. When
// Tampered is set, Text holds TamperText rather than recovered plaintext.
type PlaintextResult struct {
	Text     string
	Tampered bool
}

// PeerRecord is the client-side view of one peer.
type PeerRecord struct {
	Identity   Identity
	State      PeerState
	SessionKey *SessionKey
	History    []Message
	Online     bool
}
