package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"sealrelay/internal/config"
	"sealrelay/internal/logging"
	"sealrelay/internal/relay"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configFile string
		listen     string
		logLevel   string
	)
	cmd := &cobra.Command{
		Use:          "relay",
		Short:        "Run the sealrelay WebSocket relay",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadRelayFile(configFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Listen = listen
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			out, err := logging.OpenOutput(cfg.LogFile)
			if err != nil {
				return err
			}
			defer out.Close()
			log, err := logging.New(out, cfg.LogLevel)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return relay.NewServer(cfg, log).Run(ctx)
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "TOML relay config file")
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default :8080)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	return cmd
}
