package store

import (
	"context"

	"github.com/aatumaykin/berrus-helper/internal/game"
	"github.com/aatumaykin/berrus-helper/internal/logger"
	"github.com/aatumaykin/berrus-helper/internal/storage"
)

// Session returns the current session, nil when there is none.
func (s *Store) Session(ctx context.Context) *game.SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats *game.SessionStats
	if _, err := storage.Load(ctx, s.kv, storage.KeyCurrentSession, &stats); err != nil {
		s.logger.ErrorCtx(ctx, "failed to read session", err)
		return nil
	}
	return stats
}

// StartSession replaces the current session with an empty one.
func (s *Store) StartSession(ctx context.Context) error {
	s.mu.Lock()
	err := storage.Save(ctx, s.kv, storage.KeyCurrentSession, game.NewSession(s.now().UnixMilli()))
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.logger.InfoCtx(ctx, "session started")
	s.emit(storage.KeyCurrentSession)
	return nil
}

// AddSessionEvent folds e into the current session, creating one if needed.
// It is a no-op while session tracking is disabled.
func (s *Store) AddSessionEvent(ctx context.Context, e game.SessionEvent) error {
	s.mu.Lock()
	if !s.trackingSettings(ctx).SessionTracking() {
		s.mu.Unlock()
		s.logger.DebugCtx(ctx, "session tracking disabled, event ignored",
			logger.Field{Key: "type", Value: e.Type})
		return nil
	}
	err := s.applySessionEvent(ctx, e)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.emit(storage.KeyCurrentSession)
	return nil
}

// applySessionEvent is AddSessionEvent without the gate. Callers hold s.mu.
func (s *Store) applySessionEvent(ctx context.Context, e game.SessionEvent) error {
	var stats *game.SessionStats
	if _, err := storage.Load(ctx, s.kv, storage.KeyCurrentSession, &stats); err != nil {
		return err
	}
	now := s.now().UnixMilli()
	if stats == nil {
		stats = game.NewSession(now)
	}
	stats.Apply(e, now)
	return storage.Save(ctx, s.kv, storage.KeyCurrentSession, stats)
}
