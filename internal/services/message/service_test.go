package message_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealrelay/internal/crypto"
	"sealrelay/internal/domain"
	"sealrelay/internal/logging"
	"sealrelay/internal/services/message"
	"sealrelay/internal/store"
)

type recordingRelay struct {
	msgs []domain.EncryptedEnvelope
	err  error
}

func (r *recordingRelay) Join(context.Context, string, domain.PublicKey) error { return nil }

func (r *recordingRelay) SendSessionKey(context.Context, domain.SessionKeyEnvelope) error {
	return nil
}

func (r *recordingRelay) SendMessage(_ context.Context, env domain.EncryptedEnvelope) error {
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, env)
	return nil
}

func establishedDirectory(t *testing.T, id domain.PeerID, name string) (*store.PeerDirectory, domain.SessionKey) {
	t.Helper()
	key, err := crypto.GenerateSessionKey()
	require.NoError(t, err)
	peers := store.NewPeerDirectory()
	peers.ApplyDirectory("self", []domain.Identity{{ID: id, DisplayName: name, PublicKey: "cGs="}})
	require.True(t, peers.SetSessionKeyIfAbsent(id, key))
	return peers, key
}

func TestSend_RequiresSession(t *testing.T) {
	peers := store.NewPeerDirectory()
	peers.ApplyDirectory("self", []domain.Identity{{ID: "b", PublicKey: "cGs="}})
	relay := &recordingRelay{}
	svc := message.New(crypto.DefaultSuite, peers, relay, logging.Discard())

	_, err := svc.Send(context.Background(), "b", "hi")
	assert.ErrorIs(t, err, message.ErrNoSession)
	assert.Empty(t, relay.msgs)
}

func TestSend_SealsAndRecords(t *testing.T) {
	peers, key := establishedDirectory(t, "b", "Bob")
	relay := &recordingRelay{}
	svc := message.New(crypto.DefaultSuite, peers, relay, logging.Discard())

	msg, err := svc.Send(context.Background(), "b", "Hello Bob")
	require.NoError(t, err)
	assert.Equal(t, "You", msg.Sender)
	assert.Equal(t, domain.Sent, msg.Direction)
	assert.True(t, msg.IntegrityOK)

	require.Len(t, relay.msgs, 1)
	env := relay.msgs[0]
	assert.Equal(t, domain.PeerID("b"), env.To)
	assert.NotContains(t, env.Ciphertext, "Hello")
	assert.Equal(t, domain.PlaintextResult{Text: "Hello Bob"}, crypto.Open(env, key))

	rec, _ := peers.Peer("b")
	require.Len(t, rec.History, 1)
	assert.Equal(t, "Hello Bob", rec.History[0].Text)
}

func TestSend_RelayFailureIsNotRecorded(t *testing.T) {
	peers, _ := establishedDirectory(t, "b", "Bob")
	boom := errors.New("closed")
	svc := message.New(crypto.DefaultSuite, peers, &recordingRelay{err: boom}, logging.Discard())

	_, err := svc.Send(context.Background(), "b", "hi")
	assert.ErrorIs(t, err, boom)
	rec, _ := peers.Peer("b")
	assert.Empty(t, rec.History)
}

func TestReceive_VerifiedMessage(t *testing.T) {
	peers, key := establishedDirectory(t, "a", "Alice")
	svc := message.New(crypto.DefaultSuite, peers, &recordingRelay{}, logging.Discard())

	env, err := crypto.Seal("Hello Bob", key)
	require.NoError(t, err)
	env.From = "a"

	msg, err := svc.Receive(env)
	require.NoError(t, err)
	assert.Equal(t, "Alice", msg.Sender)
	assert.Equal(t, "Hello Bob", msg.Text)
	assert.Equal(t, domain.Received, msg.Direction)
	assert.True(t, msg.IntegrityOK)
}

func TestReceive_TamperedMessageIsRecorded(t *testing.T) {
	peers, key := establishedDirectory(t, "a", "Alice")
	svc := message.New(crypto.DefaultSuite, peers, &recordingRelay{}, logging.Discard())

	env, err := crypto.Seal("Hello Bob", key)
	require.NoError(t, err)
	ct, err := crypto.UnB64(env.Ciphertext)
	require.NoError(t, err)
	ct[0] ^= 0x01
	env.Ciphertext = crypto.B64(ct)
	env.From = "a"

	msg, err := svc.Receive(env)
	require.NoError(t, err)
	assert.Equal(t, domain.TamperText, msg.Text)
	assert.False(t, msg.IntegrityOK)

	rec, _ := peers.Peer("a")
	require.Len(t, rec.History, 1)
	assert.Equal(t, domain.TamperText, rec.History[0].Text)
}

func TestReceive_WithoutSessionIsDropped(t *testing.T) {
	peers := store.NewPeerDirectory()
	peers.ApplyDirectory("self", []domain.Identity{{ID: "a", PublicKey: "cGs="}})
	svc := message.New(crypto.DefaultSuite, peers, &recordingRelay{}, logging.Discard())

	key, _ := crypto.GenerateSessionKey()
	env, err := crypto.Seal("hi", key)
	require.NoError(t, err)
	env.From = "a"

	_, err = svc.Receive(env)
	assert.ErrorIs(t, err, message.ErrNoSession)
	rec, _ := peers.Peer("a")
	assert.Empty(t, rec.History)
}

func TestReceive_ChaChaSuite(t *testing.T) {
	peers, key := establishedDirectory(t, "a", "")
	svc := message.New(crypto.SuiteChaCha20Poly1305, peers, &recordingRelay{}, logging.Discard())

	env, err := crypto.SuiteChaCha20Poly1305.Seal("hola", key)
	require.NoError(t, err)
	env.From = "a"

	msg, err := svc.Receive(env)
	require.NoError(t, err)
	assert.Equal(t, "hola", msg.Text)
	assert.Equal(t, "Stranger", msg.Sender)
}
