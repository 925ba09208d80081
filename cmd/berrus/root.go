package main

import (
	"github.com/spf13/cobra"
)

var (
	configPath string
	envPath    string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "berrus",
	Short: "berrus-helper - companion daemon for Berrus",
	Long: `berrus-helper watches the Berrus game page, tracks job timers, prices
and the current play session, and notifies you when jobs complete.

Run "berrus serve --watch" to start the daemon together with a browser
watcher, or "berrus serve" and "berrus watch" as separate processes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: ./config.toml if present)")
	rootCmd.PersistentFlags().StringVar(&envPath, "env", ".env", "Path to .env file")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "Override log level (debug, info, warn, error)")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(hiscoresCmd)
}
