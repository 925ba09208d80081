package main

import (
	"github.com/spf13/cobra"

	"github.com/aatumaykin/berrus-helper/internal/app"
	"github.com/aatumaykin/berrus-helper/internal/logger"
	"github.com/aatumaykin/berrus-helper/internal/relay"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the game page and relay facts to a running daemon",
	Long: `Open the game in a browser (launched locally or reached through
browser.control_url), extract jobs, prices and session events and post them
to the daemon at relay.url.`,
	Args: cobra.NoArgs,
	RunE: watchHandler,
}

func watchHandler(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadValidConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, stop := withSignals(cmd.Context())
	defer stop()

	client := relay.NewClient(cfg.Relay.URL, cfg.Relay.Timeout(), log)
	w, err := app.NewWatcher(cfg, client, log, nil)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	log.Info("👀 watching", logger.Field{Key: "relay", Value: cfg.Relay.URL})

	<-ctx.Done()
	return w.Stop()
}
