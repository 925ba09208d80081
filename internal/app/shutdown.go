package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aatumaykin/berrus-helper/internal/logger"
)

const serverStopTimeout = 5 * time.Second

// Shutdown performs graceful shutdown of all components.
// It stops the application in the following order:
//  1. Stops the browser watcher, so nothing new is posted
//  2. Stops the HTTP bridge
//  3. Stops the alarm scheduler
//  4. Stops the message bus, then closes the mirror and the storage
//
// The method is thread-safe and can be called from multiple goroutines.
func (a *App) Shutdown() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.shutdownInternal()
}

// Restart re-creates every component without terminating the process.
// Persisted state survives, pending job alarms are restored from it.
func (a *App) Restart() error {
	a.restartMutex.Lock()
	defer a.restartMutex.Unlock()

	a.logger.Info("Restarting application")

	a.mu.Lock()
	watch := a.watcher != nil
	err := a.shutdownInternal()
	a.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to shutdown: %w", err)
	}

	if err := a.Initialize(context.Background()); err != nil {
		return fmt.Errorf("failed to reinitialize: %w", err)
	}
	if watch {
		if err := a.StartWatcher(a.ctx); err != nil {
			return fmt.Errorf("failed to restart watcher: %w", err)
		}
	}

	a.logger.Info("Application restarted successfully")
	return nil
}

// shutdownInternal performs shutdown without taking the mutex.
func (a *App) shutdownInternal() error {
	if !a.started {
		return nil
	}

	err := a.release()
	a.started = false

	a.logger.Info("Application shutdown complete")
	return err
}

// release stops every component that exists, in reverse start order.
// Callers hold a.mu.
func (a *App) release() error {
	var errs []error

	if a.watcher != nil {
		if err := a.watcher.Stop(); err != nil {
			a.logger.Error("Failed to stop watcher", err)
		}
		a.watcher = nil
	}

	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), serverStopTimeout)
		if err := a.server.Stop(ctx); err != nil {
			a.logger.Error("Failed to stop relay server", err)
			errs = append(errs, err)
		}
		cancel()
		a.server = nil
	}

	if a.scheduler != nil {
		if err := a.scheduler.Stop(); err != nil {
			a.logger.Debug("alarm scheduler stop", logger.Field{Key: "error", Value: err.Error()})
		}
		a.scheduler = nil
	}

	if a.cancel != nil {
		a.cancel()
	}

	if a.messageBus != nil {
		if err := a.messageBus.Stop(); err != nil {
			a.logger.Debug("message bus stop", logger.Field{Key: "error", Value: err.Error()})
		}
		a.messageBus = nil
	}

	if a.mirror != nil {
		if err := a.mirror.Close(); err != nil {
			a.logger.Error("Failed to close fact mirror", err)
			errs = append(errs, err)
		}
		a.mirror = nil
	}

	if a.kv != nil {
		if err := a.kv.Close(); err != nil {
			a.logger.Error("Failed to close storage", err)
			errs = append(errs, err)
		}
		a.kv = nil
	}

	a.store = nil
	return errors.Join(errs...)
}
