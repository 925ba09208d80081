// Package store is the aggregation side of the relay: it applies fact
// messages to the persisted state, answers queries, arms job alarms and
// sends completion notifications.
//
// Every read-modify-write runs under one mutex, so messages from the relay
// and alarm callbacks never interleave.
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/aatumaykin/berrus-helper/internal/bus"
	"github.com/aatumaykin/berrus-helper/internal/game"
	"github.com/aatumaykin/berrus-helper/internal/logger"
	"github.com/aatumaykin/berrus-helper/internal/metrics"
	"github.com/aatumaykin/berrus-helper/internal/notify"
	"github.com/aatumaykin/berrus-helper/internal/storage"
)

// Alarms is the alarm scheduler used for job completion.
type Alarms interface {
	Create(name string, delay time.Duration) time.Time
	Clear(name string) bool
}

// HiscoreSearcher looks players up.
type HiscoreSearcher interface {
	Search(ctx context.Context, player, category string) (game.HiscoreSearchResult, error)
}

// ChangeFunc is called with the key that was written.
type ChangeFunc func(key string)

// Deps are the collaborators of a Store. KV and Logger are required.
type Deps struct {
	KV       storage.KV
	Alarms   Alarms
	Notifier notify.Notifier
	Hiscores HiscoreSearcher
	Logger   *logger.Logger
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

// Store implements bus.Handler.
type Store struct {
	mu       sync.Mutex
	kv       storage.KV
	alarms   Alarms
	notifier notify.Notifier
	hiscores HiscoreSearcher
	logger   *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	listenersMu sync.RWMutex
	listeners   map[int]ChangeFunc
	nextID      int
}

// New creates a store over d.KV.
func New(d Deps) *Store {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Store{
		kv:        d.KV,
		alarms:    d.Alarms,
		notifier:  d.Notifier,
		hiscores:  d.Hiscores,
		logger:    d.Logger,
		metrics:   d.Metrics,
		now:       d.Now,
		listeners: make(map[int]ChangeFunc),
	}
}

// Handle applies msg. Facts answer bus.Ack; storage failures are returned as
// errors and become a failed Ack on the bus.
func (s *Store) Handle(ctx context.Context, msg bus.Message) (any, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil message", bus.ErrUnknownMessage)
	}
	resp, err := s.handle(ctx, msg)
	s.metrics.RecordMessage(string(msg.Type()), err == nil)
	return resp, err
}

func (s *Store) handle(ctx context.Context, msg bus.Message) (any, error) {
	switch m := msg.(type) {
	case bus.JobDetected:
		return ack(s.AddJob(ctx, m.Job))
	case bus.JobCompleted:
		return ack(s.CompleteJob(ctx, m.JobID, true))
	case bus.PriceSnapshot:
		return ack(s.AddPrice(ctx, m.Snapshot))
	case bus.XPGained:
		return ack(s.AddSessionEvent(ctx, m.Event))
	case bus.ItemCollected:
		return ack(s.AddSessionEvent(ctx, m.Event))
	case bus.SessionEvent:
		return ack(s.AddSessionEvent(ctx, m.Event))
	case bus.ContentScriptReady:
		return ack(s.StartSession(ctx))
	case bus.GetTimers:
		return s.Timers(ctx), nil
	case bus.GetPrices:
		return s.Prices(ctx, m.ItemID), nil
	case bus.GetSessionStats:
		if stats := s.Session(ctx); stats != nil {
			return stats, nil
		}
		return nil, nil
	case bus.SearchHiscores:
		return s.SearchHiscores(ctx, m.PlayerName, m.Category), nil
	default:
		return nil, fmt.Errorf("%w: %s", bus.ErrUnknownMessage, msg.Type())
	}
}

func ack(err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return bus.Ack{Success: true}, nil
}

// OnChange registers fn and returns a function removing it. Listeners run
// after the store lock is released.
func (s *Store) OnChange(fn ChangeFunc) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Store) emit(keys ...string) {
	if len(keys) == 0 {
		return
	}
	s.listenersMu.RLock()
	fns := make([]ChangeFunc, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.RUnlock()

	for _, key := range slices.Compact(keys) {
		for _, fn := range fns {
			fn(key)
		}
	}
}

// Install writes the defaults of every absent key.
func (s *Store) Install(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	defaults := []struct {
		key   string
		value any
	}{
		{storage.KeySettings, game.DefaultSettings()},
		{storage.KeyJobTimers, game.NewJobTimerState()},
		{storage.KeyPriceHistories, map[string]game.PriceHistory{}},
	}
	for _, d := range defaults {
		_, err := s.kv.Get(ctx, d.key)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("install %s: %w", d.key, err)
		}
		if err := storage.Save(ctx, s.kv, d.key, d.value); err != nil {
			return fmt.Errorf("install: %w", err)
		}
		s.logger.Info("default value written", logger.Field{Key: "key", Value: d.key})
	}
	return nil
}

// Settings returns the stored settings or the defaults.
func (s *Store) Settings(ctx context.Context) (game.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settingsLocked(ctx)
}

func (s *Store) settingsLocked(ctx context.Context) (game.Settings, error) {
	settings := game.DefaultSettings()
	if _, err := storage.Load(ctx, s.kv, storage.KeySettings, &settings); err != nil {
		return game.DefaultSettings(), err
	}
	return settings, nil
}

// UpdateSettings applies fn to the stored settings and saves them.
func (s *Store) UpdateSettings(ctx context.Context, fn func(*game.Settings)) (game.Settings, error) {
	s.mu.Lock()
	settings, err := s.settingsLocked(ctx)
	if err != nil {
		s.mu.Unlock()
		return settings, err
	}
	fn(&settings)
	err = storage.Save(ctx, s.kv, storage.KeySettings, settings)
	s.mu.Unlock()

	if err != nil {
		return settings, err
	}
	s.emit(storage.KeySettings)
	return settings, nil
}

// trackingSettings reads settings for a gate; failures fall back to the
// defaults so a corrupt document does not stop recording.
func (s *Store) trackingSettings(ctx context.Context) game.Settings {
	settings, err := s.settingsLocked(ctx)
	if err != nil {
		s.logger.WarnCtx(ctx, "settings unreadable, using defaults",
			logger.Field{Key: "error", Value: err.Error()})
	}
	return settings
}
