package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"sealrelay/internal/crypto"
	"sealrelay/internal/domain"
	"sealrelay/internal/logging"
	"sealrelay/internal/util/memzero"
)

// ErrNoSender is returned for session-key envelopes without a sender id.
var ErrNoSender = errors.New("session key envelope has no sender")

// Service runs the lazy session-key handshake for one local identity.
type Service struct {
	identity domain.PrivateIdentity
	peers    domain.PeerStore
	relay    domain.RelayClient
	log      logrus.FieldLogger
}

// New constructs a Session Service.
func New(
	identity domain.PrivateIdentity,
	peers domain.PeerStore,
	relay domain.RelayClient,
	log logrus.FieldLogger,
) *Service {
	return &Service{
		identity: identity,
		peers:    peers,
		relay:    relay,
		log:      log.WithField("module", "session"),
	}
}

// Initiate establishes a session key with peer if the peer's record is Known.
// It reports whether a key was generated and sent; records that are already
// pending or established are left alone.
//
// Steps:
//  1. Claim the record (Known -> SessionPending).
//  2. Generate a session key and store it if the slot is still empty. If the
//     peer's own key arrived in the meantime, that key wins and nothing is sent.
//  3. Seal the raw key under the peer's public key.
//  4. Send the sealed key through the relay.
//  5. Mark the record Established without waiting for an acknowledgment.
func (s *Service) Initiate(ctx context.Context, peer domain.PeerID) (bool, error) {
	ident, started, err := s.peers.BeginHandshake(peer)
	if err != nil || !started {
		return false, err
	}
	audit := logging.Audit(s.log).WithFields(logrus.Fields{
		"peer": ident.DisplayName,
		"id":   peer,
	})
	audit.Info("initiating handshake")

	key, err := crypto.GenerateSessionKey()
	if err != nil {
		s.peers.AbortHandshake(peer)
		return false, err
	}
	defer memzero.Key(&key)

	if !s.peers.ProposeSessionKey(peer, key) {
		audit.Info("peer's session key arrived first; discarding ours")
		return false, nil
	}

	raw := crypto.ExportRaw(key)
	sealed, err := crypto.SealSessionKey(raw, ident.PublicKey)
	memzero.Zero(raw)
	if err != nil {
		s.peers.AbortHandshake(peer)
		audit.WithError(err).Warn("sealing session key failed")
		return false, fmt.Errorf("seal session key for %s: %w", peer, err)
	}
	audit.WithField("fingerprint", crypto.Fingerprint(ident.PublicKey)).
		Info("session key sealed with peer's public key")

	env := domain.SessionKeyEnvelope{To: peer, Payload: crypto.B64(sealed)}
	if err := s.relay.SendSessionKey(ctx, env); err != nil {
		s.peers.AbortHandshake(peer)
		audit.WithError(err).Warn("sending session key failed")
		return false, fmt.Errorf("send session key to %s: %w", peer, err)
	}

	s.peers.MarkEstablished(peer)
	audit.Info("shared session key with peer")
	return true, nil
}

// Accept opens a session key sent by env.From and stores it unless a key for
// that peer is already held.
func (s *Service) Accept(env domain.SessionKeyEnvelope) error {
	if env.From == "" {
		return ErrNoSender
	}
	audit := logging.Audit(s.log).WithField("id", env.From)
	audit.Info("received sealed session key")

	ct, err := crypto.UnB64(env.Payload)
	if err != nil {
		audit.Warn("session key payload is not base64")
		return fmt.Errorf("open session key from %s: %w", env.From, crypto.ErrDecryption)
	}
	raw, err := crypto.OpenSessionKey(ct, s.identity.PrivateKey)
	if err != nil {
		audit.WithError(err).Warn("could not open session key")
		return fmt.Errorf("open session key from %s: %w", env.From, err)
	}
	key, err := crypto.ImportRaw(raw)
	memzero.Zero(raw)
	if err != nil {
		audit.WithError(err).Warn("could not import session key")
		return fmt.Errorf("import session key from %s: %w", env.From, err)
	}
	defer memzero.Key(&key)

	if !s.peers.SetSessionKeyIfAbsent(env.From, key) {
		audit.Info("already holding a session key for peer; received key not used")
		return nil
	}
	audit.Info("secure channel established")
	return nil
}

// Compile-time assertion that Service implements domain.SessionService.
var _ domain.SessionService = (*Service)(nil)
