package app

import (
	"io"

	"github.com/sirupsen/logrus"

	"sealrelay/internal/crypto"
	"sealrelay/internal/domain"
	"sealrelay/internal/logging"
	"sealrelay/internal/protocol/wire"
	identitysvc "sealrelay/internal/services/identity"
	"sealrelay/internal/store"
)

// Wire bundles the long-lived dependencies of the chat client.
type Wire struct {
	Config     Config
	Log        *logrus.Logger
	Audit      *logging.AuditHook
	Identities domain.IdentityService
	Suite      crypto.Suite
	Codec      wire.Codec

	logOut io.Closer
}

// NewWire constructs the dependency graph from cfg.
func NewWire(cfg Config) (*Wire, error) {
	cc := cfg.Client
	if err := cc.Validate(); err != nil {
		return nil, err
	}
	suite, err := crypto.ParseSuite(cc.Cipher)
	if err != nil {
		return nil, err
	}
	codec, err := wire.ParseCodec(cc.Codec)
	if err != nil {
		return nil, err
	}

	var out io.WriteCloser
	if cfg.LogOutput != nil {
		out = nopCloser{cfg.LogOutput}
	} else if out, err = logging.OpenOutput(cc.LogFile); err != nil {
		return nil, err
	}
	log, err := logging.New(out, cc.LogLevel)
	if err != nil {
		_ = out.Close()
		return nil, err
	}
	audit := logging.NewAuditHook(cc.AuditLines, cfg.OnAudit)
	log.AddHook(audit)

	// Identity keystore is optional; without one a fresh pair is generated
	// on every start.
	var keystore domain.IdentityStore
	if cc.IdentityFile != "" {
		keystore = store.NewIdentityFileStore(cc.IdentityFile)
	}

	return &Wire{
		Config:     cfg,
		Log:        log,
		Audit:      audit,
		Identities: identitysvc.New(keystore),
		Suite:      suite,
		Codec:      codec,
		logOut:     out,
	}, nil
}

// Close releases the log output.
func (w *Wire) Close() error {
	return w.logOut.Close()
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
