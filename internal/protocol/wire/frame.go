package wire

import "sealrelay/internal/domain"

// Kind tags a frame on the wire.
type Kind string

const (
	KindWelcome    Kind = "welcome"
	KindJoin       Kind = "join"
	KindDirectory  Kind = "directory"
	KindSessionKey Kind = "session-key"
	KindMessage    Kind = "message"
	KindError      Kind = "error"
)

// Frame is implemented only by the frame types in this package.
type Frame interface {
	Kind() Kind
	frame()
}

// Welcome tells a new connection the id the relay assigned to it.
type Welcome struct {
	ID domain.PeerID `json:"id" cbor:"id"`
}

// Join announces a display name and identity public key.
type Join struct {
	DisplayName string           `json:"displayName" cbor:"displayName"`
	PublicKey   domain.PublicKey `json:"publicKey" cbor:"publicKey"`
}

// Directory is the relay's full snapshot of joined identities.
type Directory struct {
	Peers []domain.Identity `json:"peers" cbor:"peers"`
}

// SessionKey carries a sealed session key between two peers.
type SessionKey struct {
	domain.SessionKeyEnvelope
}

// Message carries an encrypted text message between two peers.
type Message struct {
	domain.EncryptedEnvelope
}

// Error reports a rejected frame back to its sender.
type Error struct {
	Reason string `json:"reason" cbor:"reason"`
}

func (Welcome) Kind() Kind    { return KindWelcome }
func (Join) Kind() Kind       { return KindJoin }
func (Directory) Kind() Kind  { return KindDirectory }
func (SessionKey) Kind() Kind { return KindSessionKey }
func (Message) Kind() Kind    { return KindMessage }
func (Error) Kind() Kind      { return KindError }

func (Welcome) frame()    {}
func (Join) frame()       {}
func (Directory) frame()  {}
func (SessionKey) frame() {}
func (Message) frame()    {}
func (Error) frame()      {}

// newFrame returns a pointer to the zero frame for kind.
func newFrame(kind Kind) (any, bool) {
	switch kind {
	case KindWelcome:
		return new(Welcome), true
	case KindJoin:
		return new(Join), true
	case KindDirectory:
		return new(Directory), true
	case KindSessionKey:
		return new(SessionKey), true
	case KindMessage:
		return new(Message), true
	case KindError:
		return new(Error), true
	default:
		return nil, false
	}
}

// deref turns the pointer built by newFrame back into a Frame value.
func deref(v any) Frame {
	switch f := v.(type) {
	case *Welcome:
		return *f
	case *Join:
		return *f
	case *Directory:
		return *f
	case *SessionKey:
		return *f
	case *Message:
		return *f
	case *Error:
		return *f
	default:
		panic("wire: deref of unknown frame type")
	}
}
