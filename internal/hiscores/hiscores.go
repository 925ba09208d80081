// Package hiscores looks players up on the public hiscore page.
package hiscores

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/wasilibs/go-re2"

	"github.com/aatumaykin/berrus-helper/internal/game"
	"github.com/aatumaykin/berrus-helper/internal/logger"
	"github.com/aatumaykin/berrus-helper/internal/metrics"
	"github.com/aatumaykin/berrus-helper/internal/retry"
)

const (
	DefaultBaseURL = "https://www.berrus.app"
	DefaultTimeout = 15 * time.Second

	maxBodySize = 5 << 20
)

// rank, separator, player name, level, comma grouped xp
var rowPattern = re2.MustCompile(`(\d+)\s*[.\-)\s]+([A-Za-z0-9_]+)\s+(\d+)\s+([\d,]+)`)

// Client fetches and parses hiscore pages.
type Client struct {
	baseURL string
	http    *http.Client
	retry   retry.Config
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }
func WithRetry(cfg retry.Config) Option     { return func(c *Client) { c.retry = cfg } }
func WithMetrics(m *metrics.Metrics) Option { return func(c *Client) { c.metrics = m } }
func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

// NewClient creates a client for the hiscore page under baseURL.
func NewClient(baseURL string, log *logger.Logger, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.Logger == nil {
		c.retry.Logger = log
	}
	return c
}

// Search fetches the hiscores of category and keeps the rows whose player
// name contains player. When nothing matches every parsed row is returned.
func (c *Client) Search(ctx context.Context, player, category string) (game.HiscoreSearchResult, error) {
	q := url.Values{}
	q.Set("player", player)
	q.Set("category", category)
	target := c.baseURL + "/hiscores?" + q.Encode()

	c.logger.InfoCtx(ctx, "fetching hiscores", logger.Field{Key: "url", Value: target})

	started := time.Now()
	body, err := retry.DoWithRetry(ctx, func(ctx context.Context) ([]byte, error) {
		return c.fetch(ctx, target)
	}, c.retry)
	c.metrics.RecordHiscoreLookup(err == nil, time.Since(started))
	if err != nil {
		c.logger.ErrorCtx(ctx, "hiscore search failed", err,
			logger.Field{Key: "player", Value: player},
			logger.Field{Key: "category", Value: category})
		return game.HiscoreSearchResult{}, fmt.Errorf("hiscore search failed: %w", err)
	}

	return game.HiscoreSearchResult{
		Query:     player,
		Category:  category,
		Entries:   FilterByPlayer(ParseEntries(body, category), player),
		FetchedAt: c.now().UnixMilli(),
	}, nil
}

func (c *Client) fetch(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &retry.StatusError{Code: resp.StatusCode, URL: target}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
}

// ParseEntries extracts ranked rows from a hiscore page. Table rows are
// matched one by one; pages without a usable table are matched as a whole.
// Every entry is tagged with category.
func ParseEntries(body []byte, category string) []game.HiscoreEntry {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return matchRows(string(body), category)
	}

	var entries []game.HiscoreEntry
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td, th").Map(func(_ int, cell *goquery.Selection) string {
			return strings.TrimSpace(cell.Text())
		})
		entries = append(entries, matchRows(strings.Join(cells, " "), category)...)
	})
	if len(entries) > 0 {
		return entries
	}
	return matchRows(doc.Text(), category)
}

func matchRows(text, category string) []game.HiscoreEntry {
	var entries []game.HiscoreEntry
	for _, m := range rowPattern.FindAllStringSubmatch(text, -1) {
		rank, _ := strconv.Atoi(m[1])
		level, _ := strconv.Atoi(m[3])
		xp, _ := strconv.ParseInt(strings.ReplaceAll(m[4], ",", ""), 10, 64)
		if rank <= 0 || m[2] == "" {
			continue
		}
		entries = append(entries, game.HiscoreEntry{
			Rank:       rank,
			PlayerName: m[2],
			Level:      level,
			XP:         xp,
			Category:   category,
		})
	}
	return entries
}

// FilterByPlayer keeps entries whose name contains query, case-insensitively.
// It returns entries unchanged when none match.
func FilterByPlayer(entries []game.HiscoreEntry, query string) []game.HiscoreEntry {
	needle := strings.ToLower(query)
	var matched []game.HiscoreEntry
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.PlayerName), needle) {
			matched = append(matched, e)
		}
	}
	if len(matched) > 0 {
		return matched
	}
	if entries == nil {
		return []game.HiscoreEntry{}
	}
	return entries
}
