package hiscores

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/berrus-helper/internal/game"
	"github.com/aatumaykin/berrus-helper/internal/logger"
	"github.com/aatumaykin/berrus-helper/internal/retry"
)

const tablePage = `<html><body>
<table>
  <tr><th>Rank</th><th>Player</th><th>Level</th><th>XP</th></tr>
  <tr><td>1</td><td>Alice</td><td>99</td><td>13,034,431</td></tr>
  <tr><td>2</td><td>bob_the_miner</td><td>87</td><td>4,100,200</td></tr>
  <tr><td>3</td><td>Alicia</td><td>80</td><td>2,000,000</td></tr>
</table>
</body></html>`

func TestParseEntries_Table(t *testing.T) {
	entries := ParseEntries([]byte(tablePage), "total")

	require.Len(t, entries, 3)
	assert.Equal(t, game.HiscoreEntry{Rank: 1, PlayerName: "Alice", Level: 99, XP: 13034431, Category: "total"}, entries[0])
	assert.Equal(t, "bob_the_miner", entries[1].PlayerName)
	assert.Equal(t, int64(2000000), entries[2].XP)
}

func TestParseEntries_PlainText(t *testing.T) {
	page := "<div>\n<p>1. Alice 99 1,000</p>\n<p>2) Bob 50 900</p>\n</div>"

	entries := ParseEntries([]byte(page), "mining")
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "Bob", entries[1].PlayerName)
	assert.Equal(t, 50, entries[1].Level)
	assert.Equal(t, int64(900), entries[1].XP)
	assert.Equal(t, "mining", entries[1].Category)
}

func TestParseEntries_Nothing(t *testing.T) {
	assert.Empty(t, ParseEntries([]byte(`<p>No players found</p>`), "total"))
	assert.Empty(t, ParseEntries(nil, "total"))
}

func TestParseEntries_SkipsRankZero(t *testing.T) {
	entries := ParseEntries([]byte(`<table><tr><td>0</td><td>Ghost</td><td>1</td><td>5</td></tr></table>`), "total")
	assert.Empty(t, entries)
}

func TestFilterByPlayer(t *testing.T) {
	entries := ParseEntries([]byte(tablePage), "total")

	got := FilterByPlayer(entries, "ALI")
	require.Len(t, got, 2)
	assert.Equal(t, "Alice", got[0].PlayerName)
	assert.Equal(t, "Alicia", got[1].PlayerName)

	assert.Len(t, FilterByPlayer(entries, "zed"), 3, "no match returns everything")
	assert.NotNil(t, FilterByPlayer(nil, "x"))
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	return NewClient(url, logger.NewNop(),
		WithRetry(retry.Config{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}),
		WithClock(func() time.Time { return time.UnixMilli(1_700_000_000_000) }))
}

func TestClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/hiscores", r.URL.Path)
		assert.Equal(t, "bob", r.URL.Query().Get("player"))
		assert.Equal(t, "mining", r.URL.Query().Get("category"))
		_, _ = w.Write([]byte(tablePage))
	}))
	defer srv.Close()

	result, err := newTestClient(t, srv.URL+"/").Search(context.Background(), "bob", "mining")
	require.NoError(t, err)

	assert.Equal(t, "bob", result.Query)
	assert.Equal(t, "mining", result.Category)
	assert.Equal(t, int64(1_700_000_000_000), result.FetchedAt)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, "bob_the_miner", result.Entries[0].PlayerName)
	assert.Equal(t, "mining", result.Entries[0].Category)
}

func TestClient_SearchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(tablePage))
	}))
	defer srv.Close()

	result, err := newTestClient(t, srv.URL).Search(context.Background(), "alice", "total")
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, "Alice", result.Entries[0].PlayerName)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_SearchNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.NotFound(w, nil)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).Search(context.Background(), "alice", "total")
	require.Error(t, err)

	var se *retry.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, int32(1), calls.Load(), "4xx is not retried")
}
