package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aatumaykin/berrus-helper/internal/app/builders"
	"github.com/aatumaykin/berrus-helper/internal/bus"
	"github.com/aatumaykin/berrus-helper/internal/logger"
	"github.com/aatumaykin/berrus-helper/internal/metrics"
	"github.com/aatumaykin/berrus-helper/internal/server"
	"github.com/aatumaykin/berrus-helper/internal/storage"
	"github.com/aatumaykin/berrus-helper/internal/store"
)

// Initialize initializes all daemon components.
// It opens storage, installs the store, starts the alarm scheduler, the
// message bus and the HTTP bridge. On failure everything already started is
// released again.
func (a *App) Initialize(ctx context.Context) (err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return fmt.Errorf("app already initialized")
	}

	// 1. Create application context
	a.ctx, a.cancel = context.WithCancel(ctx)
	defer func() {
		if err != nil {
			a.release()
		}
	}()

	// 2. Metrics
	a.initMetrics()

	// 3. Storage
	a.kv, err = storage.Open(a.config.Storage, a.logger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}

	// 4. Notifications and hiscores
	notifier, err := builders.NewNotifyBuilder(a.config, a.logger).Build()
	if err != nil {
		return err
	}
	hiscoresClient := builders.NewHiscoresBuilder(a.config.Hiscores, a.logger, a.metrics).Build()

	// 5. Store
	alarmsBuilder := builders.NewAlarmsBuilder(a.logger)
	a.scheduler = alarmsBuilder.Build()
	a.store = store.New(store.Deps{
		KV:       a.kv,
		Alarms:   a.scheduler,
		Notifier: notifier,
		Hiscores: hiscoresClient,
		Logger:   a.logger.With(logger.Field{Key: "component", Value: "store"}),
		Metrics:  a.metrics,
	})
	if err := a.store.Install(a.ctx); err != nil {
		return fmt.Errorf("failed to install store: %w", err)
	}

	// 6. Message bus, optionally mirrored
	var handler bus.Handler = a.store
	handler, a.mirror, err = builders.NewMirrorBuilder(a.config.Mirror, a.logger).Wrap(handler)
	if err != nil {
		return err
	}
	a.messageBus = bus.New(a.config.Relay.QueueSize, handler, a.logger)
	if err := a.messageBus.Start(a.ctx); err != nil {
		return fmt.Errorf("failed to start message bus: %w", err)
	}

	// 7. Alarms
	if err := alarmsBuilder.Start(a.ctx, a.scheduler, a.store); err != nil {
		return err
	}

	// 8. HTTP bridge
	opts := []server.Option{
		server.WithChanges(func(fn func(key string)) func() {
			return a.store.OnChange(fn)
		}),
	}
	if a.metricsHandler != nil {
		opts = append(opts, server.WithMetricsHandler(a.metricsHandler))
	}
	a.server = server.New(a.config.Relay.Listen, a.messageBus, a.logger, opts...)
	if err := a.server.Start(); err != nil {
		return fmt.Errorf("failed to start relay server: %w", err)
	}

	// 9. Mark as started
	a.started = true
	return nil
}

// initMetrics registers the collectors on a fresh registry, so a restart
// does not hit duplicate registration.
func (a *App) initMetrics() {
	a.metrics, a.metricsHandler = nil, nil
	if !a.config.Metrics.Enabled {
		return
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.config.Metrics.Namespace, registry)
	a.metricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
