package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aatumaykin/berrus-helper/internal/browser"
	"github.com/aatumaykin/berrus-helper/internal/bus"
	"github.com/aatumaykin/berrus-helper/internal/config"
	"github.com/aatumaykin/berrus-helper/internal/content"
	"github.com/aatumaykin/berrus-helper/internal/logger"
	"github.com/aatumaykin/berrus-helper/internal/metrics"
	"github.com/aatumaykin/berrus-helper/internal/observer"
	"github.com/aatumaykin/berrus-helper/internal/relay"
)

// Watcher is the page side: a browser host feeding the content pipeline,
// whose facts are posted to sender through a dispatcher.
type Watcher struct {
	config     *config.Config
	host       *browser.Host
	pipeline   *content.Pipeline
	dispatcher *relay.Dispatcher
	logger     *logger.Logger
}

// NewWatcher wires a watcher. sender is the in-process bus in the daemon
// or a relay.Client when the watcher runs on its own.
func NewWatcher(cfg *config.Config, sender bus.Sender, log *logger.Logger, m *metrics.Metrics) (*Watcher, error) {
	log = log.With(logger.Field{Key: "component", Value: "watcher"})

	dispatcher := relay.NewDispatcher(sender, cfg.Relay.QueueSize, cfg.Relay.Timeout(), log, m)
	host := browser.New(cfg.Browser, log)
	pipeline, err := content.New(*cfg, content.Deps{
		Page:    host,
		Poster:  dispatcher,
		Logger:  log,
		Metrics: m,
	})
	if err != nil {
		return nil, err
	}
	host.OnMutations(pipeline.HandleMutations)

	return &Watcher{
		config:     cfg,
		host:       host,
		pipeline:   pipeline,
		dispatcher: dispatcher,
		logger:     log,
	}, nil
}

// StartURL is the page the watcher opens.
func StartURL(cfg config.GameConfig) string {
	return strings.TrimRight(cfg.BaseURL, "/") + cfg.StartPath
}

// Start opens the game page and starts extraction.
func (w *Watcher) Start(ctx context.Context) error {
	w.dispatcher.Start()

	url := StartURL(w.config.Game)
	if err := w.host.Start(ctx, url, w.pipeline.APIOrigin(), w.pipeline.HTTPClient()); err != nil {
		w.dispatcher.Stop()
		return fmt.Errorf("failed to open game page: %w", err)
	}
	if err := w.pipeline.Start(); err != nil {
		_ = w.host.Close()
		w.dispatcher.Stop()
		return err
	}

	w.logger.Info("watcher started", logger.Field{Key: "url", Value: url})
	return nil
}

// Stop stops extraction, closes the browser and drops unsent posts.
func (w *Watcher) Stop() error {
	stopErr := w.pipeline.Stop()
	if errors.Is(stopErr, observer.ErrNotStarted) {
		stopErr = nil
	}
	err := errors.Join(stopErr, w.host.Close())
	w.dispatcher.Stop()
	return err
}

// StartWatcher starts a watcher posting to the daemon's bus.
func (a *App) StartWatcher(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return fmt.Errorf("app is not initialized")
	}
	if a.watcher != nil {
		return fmt.Errorf("watcher already running")
	}

	w, err := NewWatcher(a.config, a.messageBus, a.logger, a.metrics)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	a.watcher = w
	return nil
}
