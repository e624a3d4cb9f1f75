package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"sealrelay/internal/crypto"
	"sealrelay/internal/domain"
	"sealrelay/internal/logging"
	"sealrelay/internal/protocol/wire"
	messagesvc "sealrelay/internal/services/message"
	sessionsvc "sealrelay/internal/services/session"
	"sealrelay/internal/store"
)

var (
	// ErrUnexpectedFrame is returned for frames a client should never receive.
	ErrUnexpectedFrame = errors.New("client: unexpected frame from relay")

	// ErrNoSuchPeer is returned when a name or id matches no known peer.
	ErrNoSuchPeer = errors.New("client: no such peer")
)

// Transport is the relay connection an Engine runs on.
type Transport interface {
	domain.RelayClient
	Receive() (wire.Frame, error)
}

// EventKind identifies what changed.
type EventKind uint8

const (
	EventDirectory EventKind = iota + 1
	EventSession
	EventMessage
	EventRelayError
)

// Event describes one change observed by the Engine.
type Event struct {
	Kind    EventKind
	Peer    domain.PeerID
	Message domain.Message
	Reason  string
}

// Options configures an Engine.
type Options struct {
	Identity    domain.PrivateIdentity
	DisplayName string
	Suite       crypto.Suite
	Transport   Transport
	Log         logrus.FieldLogger

	// Notify, if set, is called for every Event. It runs on the goroutine
	// that caused the change and must not block.
	Notify func(Event)
}

// Engine runs the client side of the protocol for one relay connection.
type Engine struct {
	identity domain.PrivateIdentity
	name     string
	peers    domain.PeerStore
	sessions domain.SessionService
	messages domain.MessageService
	relay    Transport
	log      logrus.FieldLogger
	notify   func(Event)

	mu   sync.Mutex
	self domain.PeerID
}

// New builds an Engine with a fresh peer directory.
func New(opts Options) *Engine {
	log := opts.Log
	if log == nil {
		log = logging.Discard()
	}
	suite := opts.Suite
	if suite == "" {
		suite = crypto.DefaultSuite
	}
	notify := opts.Notify
	if notify == nil {
		notify = func(Event) {}
	}
	peers := store.NewPeerDirectory()
	return &Engine{
		identity: opts.Identity,
		name:     opts.DisplayName,
		peers:    peers,
		sessions: sessionsvc.New(opts.Identity, peers, opts.Transport, log),
		messages: messagesvc.New(suite, peers, opts.Transport, log),
		relay:    opts.Transport,
		log:      log.WithField("module", "client"),
		notify:   notify,
	}
}

// Self returns the id the relay assigned to this connection, or "" before
// the welcome frame.
func (e *Engine) Self() domain.PeerID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.self
}

// Join announces our display name and public key to the relay.
func (e *Engine) Join(ctx context.Context) error {
	logging.Audit(e.log).WithFields(logrus.Fields{
		"peer":        e.name,
		"fingerprint": crypto.Fingerprint(e.identity.PublicKey),
	}).Info("joining relay with identity public key")
	return e.relay.Join(ctx, e.name, e.identity.PublicKey)
}

// Run reads frames from the transport and handles them until the transport
// fails or ctx is cancelled. Undecodable frames are logged and skipped.
func (e *Engine) Run(ctx context.Context) error {
	for {
		f, err := e.relay.Receive()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			if errors.Is(err, wire.ErrUnknownKind) || errors.Is(err, wire.ErrMalformed) {
				e.log.WithError(err).Warn("ignoring undecodable frame")
				continue
			}
			return err
		}
		if err := e.HandleFrame(ctx, f); err != nil {
			e.log.WithError(err).WithField("kind", f.Kind()).Debug("frame not applied")
		}
	}
}

// HandleFrame applies one frame from the relay.
func (e *Engine) HandleFrame(_ context.Context, f wire.Frame) error {
	switch f := f.(type) {
	case wire.Welcome:
		e.mu.Lock()
		e.self = f.ID
		e.mu.Unlock()
		e.log.WithField("id", f.ID).Info("relay assigned connection id")
		return nil

	case wire.Directory:
		e.peers.ApplyDirectory(e.Self(), f.Peers)
		e.notify(Event{Kind: EventDirectory})
		return nil

	case wire.SessionKey:
		if err := e.sessions.Accept(f.SessionKeyEnvelope); err != nil {
			return err
		}
		e.notify(Event{Kind: EventSession, Peer: f.From})
		return nil

	case wire.Message:
		msg, err := e.messages.Receive(f.EncryptedEnvelope)
		if err != nil {
			return err
		}
		e.notify(Event{Kind: EventMessage, Peer: f.From, Message: msg})
		return nil

	case wire.Error:
		e.log.WithField("reason", f.Reason).Warn("relay rejected a frame")
		e.notify(Event{Kind: EventRelayError, Reason: f.Reason})
		return nil

	case wire.Join:
		return fmt.Errorf("%w: %s", ErrUnexpectedFrame, f.Kind())

	default:
		return ErrUnexpectedFrame
	}
}

// SelectPeer makes id the conversation partner, establishing a session key
// first if none exists. Selecting an established or pending peer again has
// no protocol effect.
func (e *Engine) SelectPeer(ctx context.Context, id domain.PeerID) (domain.PeerRecord, error) {
	rec, ok := e.peers.Peer(id)
	if !ok {
		return domain.PeerRecord{}, domain.ErrUnknownPeer
	}
	if rec.State == domain.StateKnown {
		started, err := e.sessions.Initiate(ctx, id)
		if err != nil {
			return rec, err
		}
		if started {
			e.notify(Event{Kind: EventSession, Peer: id})
		}
		rec, _ = e.peers.Peer(id)
	}
	return rec, nil
}

// Send encrypts text for id and posts it through the relay.
func (e *Engine) Send(ctx context.Context, id domain.PeerID, text string) (domain.Message, error) {
	return e.messages.Send(ctx, id, text)
}

// Peers lists every peer seen on this connection in first-seen order.
func (e *Engine) Peers() []domain.PeerRecord {
	return e.peers.Peers()
}

// Peer returns the record for id.
func (e *Engine) Peer(id domain.PeerID) (domain.PeerRecord, bool) {
	return e.peers.Peer(id)
}

// History returns the messages exchanged with id.
func (e *Engine) History(id domain.PeerID) []domain.Message {
	rec, ok := e.peers.Peer(id)
	if !ok {
		return nil
	}
	return rec.History
}

// FindPeer resolves an id or a display name. Ids win over names, online
// peers over offline ones, and otherwise the first match is returned.
func (e *Engine) FindPeer(query string) (domain.PeerRecord, error) {
	if rec, ok := e.peers.Peer(domain.PeerID(query)); ok {
		return rec, nil
	}
	var found *domain.PeerRecord
	for _, rec := range e.peers.Peers() {
		if !strings.EqualFold(rec.Identity.DisplayName, query) {
			continue
		}
		if rec.Online {
			return rec, nil
		}
		if found == nil {
			r := rec
			found = &r
		}
	}
	if found == nil {
		return domain.PeerRecord{}, fmt.Errorf("%w: %q", ErrNoSuchPeer, query)
	}
	return *found, nil
}
