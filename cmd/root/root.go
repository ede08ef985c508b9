// Package root contains the root command for the application
package root

import (
	"github.com/spf13/cobra"

	"banking/internal/bankiaparser"
	"banking/internal/bbvaparser"
	"banking/internal/config"
	"banking/internal/logging"
)

var (
	// Log is the shared logger instance for commands
	Log = logging.NewLogrusAdapter("info", "text")

	// Cfg is the environment configuration, loaded before any command runs
	Cfg *config.Config

	// Cmd is the root command
	Cmd = &cobra.Command{
		Use:   "banking",
		Short: "A personal banking tool that scrapes, reconciles and serves transaction logs.",
		Long: `banking keeps a local, canonical log of bank account and credit card
transactions. It parses raw provider payloads, enriches transactions with a
declarative rule set, reconciles batches into a consistently numbered history
and serves the result over HTTP.`,
		Run: func(cmd *cobra.Command, args []string) {
			Log.Info("Welcome to banking!")
			Log.Info("Use --help to see available commands")
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.LoadEnv()
			cfg, err := config.InitializeConfig()
			if err != nil {
				return err
			}
			Cfg = cfg
			Log = logging.NewLogrusAdapter(cfg.Log.Level, cfg.Log.Format)

			// Point the registered providers at the configured logger.
			bankiaparser.SetLogger(Log)
			bbvaparser.SetLogger(Log)
			return nil
		},
	}
)
