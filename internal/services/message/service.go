package message

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"sealrelay/internal/crypto"
	"sealrelay/internal/domain"
	"sealrelay/internal/logging"
)

const (
	selfSender    = "You"
	unknownSender = "Stranger"
)

var (
	// ErrNoSession indicates there is no established session key with the peer.
	ErrNoSession = errors.New("no session with peer; select the peer first")
)

// Service seals and opens messages with per-peer session keys.
type Service struct {
	suite crypto.Suite
	peers domain.PeerStore
	relay domain.RelayClient
	log   logrus.FieldLogger
	now   func() time.Time
}

// New constructs a Message Service using the given cipher suite.
func New(
	suite crypto.Suite,
	peers domain.PeerStore,
	relay domain.RelayClient,
	log logrus.FieldLogger,
) *Service {
	return &Service{
		suite: suite,
		peers: peers,
		relay: relay,
		log:   log.WithField("module", "message"),
		now:   time.Now,
	}
}

// Send encrypts text for peer and posts it through the relay. The message is
// recorded in the peer's history only once the relay accepted it.
func (s *Service) Send(ctx context.Context, to domain.PeerID, text string) (domain.Message, error) {
	key, ok := s.peers.SessionKey(to)
	if !ok {
		return domain.Message{}, ErrNoSession
	}
	audit := logging.Audit(s.log).WithField("id", to)

	env, err := s.suite.Seal(text, key)
	if err != nil {
		return domain.Message{}, fmt.Errorf("seal message: %w", err)
	}
	env.To = to
	audit.WithField("suite", s.suite).Info("message encrypted; integrity digest attached")

	if err := s.relay.SendMessage(ctx, env); err != nil {
		return domain.Message{}, fmt.Errorf("send message to %s: %w", to, err)
	}

	msg := domain.Message{
		Sender:      selfSender,
		Text:        text,
		Direction:   domain.Sent,
		IntegrityOK: true,
		At:          s.now(),
	}
	if err := s.peers.AppendMessage(to, msg); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// Receive opens env and appends the outcome to the sender's history.
// Envelopes from peers without an established key are dropped with
// ErrNoSession; tampered envelopes are not an error.
func (s *Service) Receive(env domain.EncryptedEnvelope) (domain.Message, error) {
	key, ok := s.peers.SessionKey(env.From)
	if !ok {
		s.log.WithField("id", env.From).Debug("dropping message from peer without session")
		return domain.Message{}, ErrNoSession
	}
	audit := logging.Audit(s.log).WithField("id", env.From)

	res := s.suite.Open(env, key)
	if res.Tampered {
		audit.Warn("INTEGRITY ERROR: message failed decryption or digest check")
	} else {
		audit.Info("integrity verified (SHA-256 match)")
	}

	sender := unknownSender
	if rec, ok := s.peers.Peer(env.From); ok && rec.Identity.DisplayName != "" {
		sender = rec.Identity.DisplayName
	}
	msg := domain.Message{
		Sender:      sender,
		Text:        res.Text,
		Direction:   domain.Received,
		IntegrityOK: !res.Tampered,
		At:          s.now(),
	}
	if err := s.peers.AppendMessage(env.From, msg); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// Compile-time assertion that Service implements domain.MessageService.
var _ domain.MessageService = (*Service)(nil)
