package store

import (
	"context"
	"maps"
	"slices"
	"strings"

	"github.com/aatumaykin/berrus-helper/internal/game"
	"github.com/aatumaykin/berrus-helper/internal/storage"
)

func (s *Store) loadPrices(ctx context.Context) (map[string]game.PriceHistory, error) {
	histories := map[string]game.PriceHistory{}
	if _, err := storage.Load(ctx, s.kv, storage.KeyPriceHistories, &histories); err != nil {
		return map[string]game.PriceHistory{}, err
	}
	if histories == nil {
		histories = map[string]game.PriceHistory{}
	}
	return histories, nil
}

// AddPrice appends a snapshot to the history of its item. It is a no-op
// while price tracking is disabled.
func (s *Store) AddPrice(ctx context.Context, snap game.PriceSnapshot) error {
	s.mu.Lock()
	if !s.trackingSettings(ctx).PriceTracking() {
		s.mu.Unlock()
		return nil
	}

	histories, err := s.loadPrices(ctx)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if h, ok := histories[snap.ItemID]; ok {
		h.Append(snap)
		histories[snap.ItemID] = h
	} else {
		histories[snap.ItemID] = game.NewPriceHistory(snap)
	}
	if err := storage.Save(ctx, s.kv, storage.KeyPriceHistories, histories); err != nil {
		s.mu.Unlock()
		return err
	}
	s.metrics.SetTrackedItems(len(histories))
	s.mu.Unlock()

	s.emit(storage.KeyPriceHistories)
	return nil
}

// Prices returns the histories sorted by item id, only the one of itemID
// when it is set. Failures read as no history.
func (s *Store) Prices(ctx context.Context, itemID string) []game.PriceHistory {
	s.mu.Lock()
	defer s.mu.Unlock()

	histories, err := s.loadPrices(ctx)
	if err != nil {
		s.logger.ErrorCtx(ctx, "failed to read price histories", err)
		return []game.PriceHistory{}
	}

	out := []game.PriceHistory{}
	if itemID != "" {
		if h, ok := histories[itemID]; ok {
			out = append(out, h)
		}
		return out
	}
	for _, h := range histories {
		out = append(out, h)
	}
	slices.SortFunc(out, func(a, b game.PriceHistory) int {
		return strings.Compare(a.ItemID, b.ItemID)
	})
	return out
}

// TrackedItems returns the ids of items with a history.
func (s *Store) TrackedItems(ctx context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	histories, err := s.loadPrices(ctx)
	if err != nil {
		return nil
	}
	return slices.Sorted(maps.Keys(histories))
}
