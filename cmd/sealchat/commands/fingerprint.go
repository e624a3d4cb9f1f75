package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"sealrelay/internal/app"
)

func fingerprintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Print identity fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := newWire(io.Discard, app.Config{})
			if err != nil {
				return err
			}
			defer w.Close()

			id, err := w.Identities.Load(passphrase)
			if err != nil {
				return err
			}
			fp, err := w.Identities.Fingerprint(id.PublicKey)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Fingerprint: %s\n", fp)
			return nil
		},
	}
	return cmd
}
