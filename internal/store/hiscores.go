package store

import (
	"context"
	"time"

	"github.com/aatumaykin/berrus-helper/internal/game"
	"github.com/aatumaykin/berrus-helper/internal/logger"
	"github.com/aatumaykin/berrus-helper/internal/storage"
)

// SearchHiscores answers a lookup from the cached last search when the query
// and category match and the cache is younger than the configured minutes.
// Lookup failures answer an empty result that echoes the query.
func (s *Store) SearchHiscores(ctx context.Context, player, category string) game.HiscoreSearchResult {
	now := s.now()

	s.mu.Lock()
	cacheFor := time.Duration(s.trackingSettings(ctx).CacheMinutes()) * time.Minute
	var last *game.HiscoreSearchResult
	if _, err := storage.Load(ctx, s.kv, storage.KeyLastHiscoreSearch, &last); err != nil {
		s.logger.WarnCtx(ctx, "hiscore cache unreadable", logger.Field{Key: "error", Value: err.Error()})
		last = nil
	}
	s.mu.Unlock()

	if last != nil && last.Query == player && last.Category == category &&
		now.Sub(time.UnixMilli(last.FetchedAt)) < cacheFor {
		s.logger.DebugCtx(ctx, "hiscore cache hit",
			logger.Field{Key: "player", Value: player},
			logger.Field{Key: "category", Value: category})
		return *last
	}

	empty := game.HiscoreSearchResult{
		Query:     player,
		Category:  category,
		Entries:   []game.HiscoreEntry{},
		FetchedAt: now.UnixMilli(),
	}
	if s.hiscores == nil {
		return empty
	}

	result, err := s.hiscores.Search(ctx, player, category)
	if err != nil {
		return empty
	}

	s.mu.Lock()
	err = storage.Save(ctx, s.kv, storage.KeyLastHiscoreSearch, result)
	s.mu.Unlock()
	if err != nil {
		s.logger.ErrorCtx(ctx, "failed to cache hiscore search", err)
	} else {
		s.emit(storage.KeyLastHiscoreSearch)
	}
	return result
}
