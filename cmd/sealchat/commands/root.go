package commands

import (
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"sealrelay/internal/app"
	"sealrelay/internal/config"
)

var (
	configFile string
	passphrase string

	identityFile string
	relayURL     string
	displayName  string
	logLevel     string
	cipherSuite  string
	codecName    string

	cfg *config.Client
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "sealchat",
		Short:        "End-to-end encrypted chat through an untrusted relay",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadClientConfig(cmd.Flags())
			if err != nil {
				return err
			}
			cfg = c
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "TOML client config file")
	pf.StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting the identity keystore")
	pf.StringVar(&identityFile, "identity", "", "identity keystore file (default: fresh key pair per run)")
	pf.StringVar(&relayURL, "relay", "", "relay WebSocket URL (e.g. ws://127.0.0.1:8080/ws)")
	pf.StringVar(&displayName, "name", "", "display name announced to the relay")
	pf.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&cipherSuite, "cipher", "", "message cipher: aes-256-gcm or chacha20-poly1305")
	pf.StringVar(&codecName, "codec", "", "relay frame codec: json or cbor")

	root.AddCommand(keygenCmd(), fingerprintCmd(), chatCmd())
	return root
}

// loadClientConfig reads --config and applies the flags that were set on
// top of it.
func loadClientConfig(flags *pflag.FlagSet) (*config.Client, error) {
	c, err := config.LoadClientFile(configFile)
	if err != nil {
		return nil, err
	}
	if flags.Changed("identity") {
		c.IdentityFile = identityFile
	}
	if flags.Changed("relay") {
		c.RelayURL = relayURL
	}
	if flags.Changed("name") {
		c.DisplayName = displayName
	}
	if flags.Changed("log-level") {
		c.LogLevel = logLevel
	}
	if flags.Changed("cipher") {
		c.Cipher = cipherSuite
	}
	if flags.Changed("codec") {
		c.Codec = codecName
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// newWire builds the app dependencies. Logs go to logOut when it is set and
// cfg.LogFile is empty.
func newWire(logOut io.Writer, hooks app.Config) (*app.Wire, error) {
	hooks.Client = cfg
	hooks.Passphrase = passphrase
	if cfg.LogFile == "" {
		hooks.LogOutput = logOut
	}
	return app.NewWire(hooks)
}
