package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"sealrelay/internal/app"
	"sealrelay/internal/store"
)

func keygenCmd() *cobra.Command {
	var (
		out   string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an identity key pair and store it securely",
		RunE: func(cmd *cobra.Command, args []string) error {
			if out != "" {
				cfg.IdentityFile = out
			}
			if cfg.IdentityFile == "" {
				return fmt.Errorf("keystore path required (--out or --identity)")
			}
			if passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			if !force && store.NewIdentityFileStore(cfg.IdentityFile).Exists() {
				return fmt.Errorf("%s already exists (use --force to replace it)", cfg.IdentityFile)
			}
			w, err := newWire(io.Discard, app.Config{})
			if err != nil {
				return err
			}
			defer w.Close()

			_, fp, err := w.Identities.Create(passphrase)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Identity created in %s.\nFingerprint: %s\n", cfg.IdentityFile, fp)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "keystore file to write")
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing keystore")
	return cmd
}
