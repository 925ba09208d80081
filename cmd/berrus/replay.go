package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/aatumaykin/berrus-helper/internal/app"
	"github.com/aatumaykin/berrus-helper/internal/bus"
	"github.com/aatumaykin/berrus-helper/internal/config"
	"github.com/aatumaykin/berrus-helper/internal/content"
	"github.com/aatumaykin/berrus-helper/internal/logger"
	"github.com/aatumaykin/berrus-helper/internal/relay"
	"github.com/aatumaykin/berrus-helper/internal/replay"
)

var replayLocal bool

// replayCmd represents the replay command
var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Play a captured page session through the extractors",
	Long: `Play a JSONL capture (navigate, document, added, response, wait, flush
events) through the same pipeline the watcher uses.

Facts are posted to the daemon at relay.url, or with --local to an in-memory
store whose resulting state is printed.`,
	Args: cobra.ExactArgs(1),
	RunE: replayHandler,
}

func replayHandler(cmd *cobra.Command, args []string) error {
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

	var sender bus.Sender
	if replayLocal {
		local := localConfig(cfg)
		a := app.New(local, log)
		if err := a.Initialize(ctx); err != nil {
			return err
		}
		defer a.Shutdown()
		sender = a.Sender()
	} else {
		sender = relay.NewClient(cfg.Relay.URL, cfg.Relay.Timeout(), log)
	}

	stats, err := runReplay(ctx, cfg, args[0], sender, log)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "events: %d, mutations: %d, responses: %d, skipped: %d\n",
		stats.Events, stats.Mutations, stats.Responses, stats.Skipped)

	if replayLocal {
		return printState(ctx, out, sender, time.Now())
	}
	return nil
}

// localConfig keeps state in memory and binds an ephemeral port, so a local
// replay never touches a running daemon.
func localConfig(cfg *config.Config) *config.Config {
	local := *cfg
	local.Storage = config.StorageConfig{Driver: "memory"}
	local.Relay.Listen = "127.0.0.1:0"
	local.Metrics.Enabled = false
	local.Mirror.Enabled = false
	local.Notifications = config.NotificationsConfig{Log: true}
	return &local
}

func runReplay(ctx context.Context, cfg *config.Config, path string, sender bus.Sender, log *logger.Logger) (replay.Stats, error) {
	host := replay.NewHost(log)
	pipeline, err := content.New(*cfg, content.Deps{
		Page:   host,
		Poster: relay.NewDirect(sender, cfg.Relay.Timeout(), log, nil),
		Logger: log,
	})
	if err != nil {
		return replay.Stats{}, err
	}
	if err := pipeline.Start(); err != nil {
		return replay.Stats{}, err
	}
	defer pipeline.Stop()

	return host.PlayFile(ctx, path, pipeline)
}

func printState(ctx context.Context, w io.Writer, sender bus.Sender, now time.Time) error {
	timers, err := bus.QueryTimers(ctx, sender)
	if err != nil {
		return err
	}
	session, err := bus.QuerySessionStats(ctx, sender)
	if err != nil {
		return err
	}
	writeTimers(w, timers, now)
	writeSession(w, session)
	return nil
}

func init() {
	replayCmd.Flags().BoolVar(&replayLocal, "local", false, "Apply facts to an in-memory store instead of the daemon")
}
