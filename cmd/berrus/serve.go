package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/berrus-helper/internal/app"
	"github.com/aatumaykin/berrus-helper/internal/logger"
	"github.com/aatumaykin/berrus-helper/internal/version"
)

var serveWatch bool

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the daemon (main command)",
	Long: `Start the daemon: persisted store, job alarms, notifications and the
local HTTP bridge used by "watch", "status" and the popup.

With --watch a browser watcher runs in the same process and posts facts to
the store directly.`,
	Args: cobra.NoArgs,
	RunE: serveHandler,
}

func serveHandler(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadValidConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	log.Info("🚀 Starting berrus-helper",
		logger.Field{Key: "version", Value: version.Version},
		logger.Field{Key: "git_commit", Value: version.GitCommit},
		logger.Field{Key: "config", Value: path},
		logger.Field{Key: "storage", Value: cfg.Storage.Driver},
		logger.Field{Key: "listen", Value: cfg.Relay.Listen},
		logger.Field{Key: "watch", Value: serveWatch})

	ctx, stop := withSignals(cmd.Context())
	defer stop()

	var opts []app.Option
	if serveWatch {
		opts = append(opts, app.WithWatcher())
	}
	if err := app.New(cfg, log, opts...).Run(ctx); err != nil {
		log.Error("daemon stopped with error", err)
		return err
	}

	log.Info("👋 berrus-helper stopped gracefully")
	return nil
}

func init() {
	serveCmd.Flags().BoolVarP(&serveWatch, "watch", "w", false, "Also run the browser watcher in this process")
}

// withSignals is used by commands that block until interrupted.
func withSignals(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
