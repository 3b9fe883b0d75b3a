package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"hotdog/internal/config"
	"hotdog/internal/logger"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:     "hotdog",
		Short:   "Forward syslog over to Kafka with ease",
		Version: version,
		RunE:    serveCmd().RunE,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "hotdog.yml", "Path to config file")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(checkCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the log routing daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}

			log, err := logger.New(cfg.Global.Logging.Level)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log.Infow("Starting hotdog", "version", version)

			app := NewApp(cfg, log)
			if err := app.Initialize(); err != nil {
				log.Fatalf("Failed to initialize: %v", err)
			}

			if err := app.Run(ctx); err != nil && err != context.Canceled {
				log.Errorw("Daemon stopped with error", "error", err)
				return err
			}
			log.Infow("Shutdown complete")
			return nil
		},
	}
}
