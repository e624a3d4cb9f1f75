package app

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"sealrelay/internal/client"
	"sealrelay/internal/domain"
	"sealrelay/internal/logging"
	"sealrelay/internal/relay"
)

// App is a running chat client: an identity, a relay connection and the
// engine driving the protocol over it.
type App struct {
	Identity    domain.PrivateIdentity
	Fingerprint domain.Fingerprint
	Engine      *client.Engine

	wire  *Wire
	relay *relay.Client
}

// Connect loads or generates the identity, dials the relay and joins under
// the configured display name. The returned App is not reading from the
// relay until Run is called.
func (w *Wire) Connect(ctx context.Context) (*App, error) {
	id, fp, err := w.identity()
	if err != nil {
		return nil, err
	}
	logging.Audit(w.Log).WithField("fingerprint", fp).Info("identity ready (RSA-2048, OAEP/SHA-256)")

	rc, err := relay.Dial(ctx, w.Config.Client.RelayURL, w.Codec)
	if err != nil {
		return nil, err
	}
	w.Log.WithFields(logrus.Fields{
		"relay": w.Config.Client.RelayURL,
		"codec": w.Codec.Name(),
		"suite": w.Suite,
	}).Info("connected to relay")

	eng := client.New(client.Options{
		Identity:    id,
		DisplayName: w.Config.Client.DisplayName,
		Suite:       w.Suite,
		Transport:   rc,
		Log:         w.Log,
		Notify:      w.Config.Notify,
	})
	if err := eng.Join(ctx); err != nil {
		_ = rc.Close()
		return nil, err
	}
	return &App{Identity: id, Fingerprint: fp, Engine: eng, wire: w, relay: rc}, nil
}

func (w *Wire) identity() (domain.PrivateIdentity, domain.Fingerprint, error) {
	if w.Config.Client.IdentityFile == "" {
		return w.Identities.Generate()
	}
	id, err := w.Identities.Load(w.Config.Passphrase)
	if err != nil {
		return domain.PrivateIdentity{}, "", err
	}
	fp, err := w.Identities.Fingerprint(id.PublicKey)
	return id, fp, err
}

// Run reads from the relay until ctx is cancelled or the connection fails.
// Cancelling ctx closes the connection.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return a.relay.Close()
	})
	g.Go(func() error {
		err := a.Engine.Run(gctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, relay.ErrClosed) {
			err = nil
		}
		if err == nil && ctx.Err() == nil {
			err = errRelayGone
		}
		return err
	})
	return g.Wait()
}

// Close disconnects from the relay.
func (a *App) Close() error {
	return a.relay.Close()
}

var errRelayGone = errors.New("relay connection closed")
