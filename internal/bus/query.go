package bus

import (
	"context"
	"fmt"

	"github.com/aatumaykin/berrus-helper/internal/game"
)

// QueryTimers sends GET_TIMERS.
func QueryTimers(ctx context.Context, s Sender) (game.JobTimerState, error) {
	resp, err := s.Send(ctx, GetTimers{})
	if err != nil {
		return game.NewJobTimerState(), err
	}
	if resp == nil {
		return game.NewJobTimerState(), nil
	}
	state, ok := resp.(game.JobTimerState)
	if !ok {
		return game.NewJobTimerState(), unexpected(TypeGetTimers, resp)
	}
	return state, nil
}

// QueryPrices sends GET_PRICES; an empty itemID returns every history.
func QueryPrices(ctx context.Context, s Sender, itemID string) ([]game.PriceHistory, error) {
	resp, err := s.Send(ctx, GetPrices{ItemID: itemID})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return []game.PriceHistory{}, nil
	}
	histories, ok := resp.([]game.PriceHistory)
	if !ok {
		return nil, unexpected(TypeGetPrices, resp)
	}
	return histories, nil
}

// QuerySessionStats sends GET_SESSION_STATS; nil means no session.
func QuerySessionStats(ctx context.Context, s Sender) (*game.SessionStats, error) {
	resp, err := s.Send(ctx, GetSessionStats{})
	if err != nil || resp == nil {
		return nil, err
	}
	stats, ok := resp.(*game.SessionStats)
	if !ok {
		return nil, unexpected(TypeGetSessionStats, resp)
	}
	return stats, nil
}

// QueryHiscores sends SEARCH_HISCORES.
func QueryHiscores(ctx context.Context, s Sender, player, category string) (game.HiscoreSearchResult, error) {
	resp, err := s.Send(ctx, SearchHiscores{PlayerName: player, Category: category})
	if err != nil {
		return game.HiscoreSearchResult{}, err
	}
	result, ok := resp.(game.HiscoreSearchResult)
	if !ok {
		return game.HiscoreSearchResult{}, unexpected(TypeSearchHiscores, resp)
	}
	return result, nil
}

func unexpected(t MessageType, resp any) error {
	return fmt.Errorf("unexpected %s response type %T", t, resp)
}
