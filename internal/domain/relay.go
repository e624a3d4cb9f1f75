package domain

import "context"

// RelayClient is how we talk to the relay. Every call is best-effort: the
// relay never acknowledges delivery.
type RelayClient interface {
	Join(ctx context.Context, displayName string, pub PublicKey) error
	SendSessionKey(ctx context.Context, env SessionKeyEnvelope) error
	SendMessage(ctx context.Context, env EncryptedEnvelope) error
}
