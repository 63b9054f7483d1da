// Package commands provides the CLI commands for rift-host.
package commands

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/riftlabs/rift-host/internal/logging"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	logLevel   string
	prettyLogs bool
)

var rootCmd = &cobra.Command{
	Use:   "rift-host",
	Short: "Rift host - agent session host for the Rift backend",
	Long: `rift-host bridges the Rift agent backend and its presentation
surfaces: it manages agent sessions over the backend's JSON-RPC protocol
and serves the webview state over HTTP.

Run 'rift-host serve' to start the host, or 'rift-host agents' to list
the agent types the backend offers.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env is fine.
		_ = godotenv.Load()

		cfg := logging.DefaultConfig()
		if logLevel != "" {
			cfg.Level = logging.ParseLevel(logLevel)
		}
		cfg.Pretty = prettyLogs
		logging.Init(cfg)
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().BoolVar(&prettyLogs, "pretty-logs", false, "Human-readable console logs")

	rootCmd.SetVersionTemplate(fmt.Sprintf("rift-host %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(agentsCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
