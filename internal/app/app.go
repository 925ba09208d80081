// Package app assembles the berrus-helper daemon: persisted store, message
// bus, job alarms, notifications, the local HTTP bridge and, optionally, a
// browser watcher feeding the bus in-process.
package app

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/aatumaykin/berrus-helper/internal/alarms"
	"github.com/aatumaykin/berrus-helper/internal/bus"
	"github.com/aatumaykin/berrus-helper/internal/config"
	"github.com/aatumaykin/berrus-helper/internal/logger"
	"github.com/aatumaykin/berrus-helper/internal/metrics"
	"github.com/aatumaykin/berrus-helper/internal/server"
	"github.com/aatumaykin/berrus-helper/internal/storage"
	"github.com/aatumaykin/berrus-helper/internal/store"
)

// App represents the daemon.
// It holds references to all major components and manages their lifecycle.
type App struct {
	// Configuration and core services
	config *config.Config
	logger *logger.Logger

	// Persistence
	kv    storage.KV
	store *store.Store

	// Communication infrastructure
	messageBus *bus.MessageBus
	server     *server.Server
	mirror     io.Closer

	// Job alarms
	scheduler *alarms.Scheduler

	// Observability
	metrics        *metrics.Metrics
	metricsHandler http.Handler

	// Page side, only with WithWatcher
	watch   bool
	watcher *Watcher

	// Context management
	ctx    context.Context
	cancel context.CancelFunc

	// Thread-safety
	mu           sync.RWMutex
	started      bool
	restartMutex sync.Mutex // Mutex to serialize Restart() calls
}

// Option configures an App.
type Option func(*App)

// WithWatcher also runs a browser watcher that posts to the bus directly.
func WithWatcher() Option {
	return func(a *App) { a.watch = true }
}

// New creates a new App instance with the provided configuration and logger.
// Components are created by Initialize.
func New(cfg *config.Config, log *logger.Logger, opts ...Option) *App {
	a := &App{
		config: cfg,
		logger: log,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts the daemon and blocks until the context is cancelled.
// It performs the following steps:
//  1. Initializes all components via Initialize()
//  2. Starts the browser watcher when enabled
//  3. Waits for the context to be cancelled
//  4. Performs graceful shutdown via Shutdown()
func (a *App) Run(ctx context.Context) error {
	if err := a.Initialize(ctx); err != nil {
		return err
	}

	if a.watch {
		if err := a.StartWatcher(a.ctx); err != nil {
			_ = a.Shutdown()
			return err
		}
	}

	a.logger.Info("berrus-helper is running",
		logger.Field{Key: "listen", Value: a.Addr()},
		logger.Field{Key: "watch", Value: a.watch})

	<-ctx.Done()

	return a.Shutdown()
}

// Sender returns the in-process bus. Nil before Initialize.
func (a *App) Sender() bus.Sender {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.messageBus == nil {
		return nil
	}
	return a.messageBus
}

// Store returns the aggregation store. Nil before Initialize.
func (a *App) Store() *store.Store {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.store
}

// Addr returns the address the HTTP bridge listens on.
func (a *App) Addr() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.server == nil {
		return ""
	}
	return a.server.Addr()
}
