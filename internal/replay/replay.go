// Package replay plays a captured page session back into the extraction
// pipeline. A capture is a JSONL file, one event per line:
//
//	{"op":"navigate","path":"/g/c/rsn/jobs"}
//	{"op":"document","html":"<div>...</div>"}
//	{"op":"added","html":"<div>+40 XP Mineria</div>"}
//	{"op":"response","url":"/api/protected/character/1","status":200,"body":"{...}"}
//	{"op":"wait","ms":600}
//	{"op":"flush"}
//
// Blank lines and lines starting with # are skipped.
package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/aatumaykin/berrus-helper/internal/dom"
	"github.com/aatumaykin/berrus-helper/internal/logger"
	"github.com/aatumaykin/berrus-helper/internal/network"
)

const maxLineSize = 4 << 20

// Event ops.
const (
	OpNavigate = "navigate"
	OpDocument = "document"
	OpAdded    = "added"
	OpResponse = "response"
	OpWait     = "wait"
	OpFlush    = "flush"
)

// Event is one captured line.
type Event struct {
	Op     string `json:"op"`
	Path   string `json:"path,omitempty"`
	HTML   string `json:"html,omitempty"`
	URL    string `json:"url,omitempty"`
	Status int    `json:"status,omitempty"`
	Body   string `json:"body,omitempty"`
	Type   string `json:"type,omitempty"`
	Ms     int    `json:"ms,omitempty"`
}

// Target receives the replayed page activity.
type Target interface {
	HandleMutations(added []*html.Node)
	Observe(typ network.ResponseType, rawURL string, status int, body string)
	Flush()
}

// Stats counts what a replay delivered.
type Stats struct {
	Events    int
	Mutations int
	Responses int
	Skipped   int
}

// Host is an observer.Page whose content comes from a capture.
type Host struct {
	mu     sync.RWMutex
	path   string
	body   strings.Builder
	logger *logger.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewHost creates an empty host at "/".
func NewHost(log *logger.Logger) *Host {
	return &Host{path: "/", logger: log, sleep: sleepCtx}
}

// Path implements observer.Page.
func (h *Host) Path() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.path
}

// Document implements observer.Page.
func (h *Host) Document() (*html.Node, error) {
	h.mu.RLock()
	body := h.body.String()
	h.mu.RUnlock()
	return dom.ParseString("<html><body>" + body + "</body></html>")
}

// PlayFile replays the capture at path.
func (h *Host) PlayFile(ctx context.Context, path string, t Target) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("open capture: %w", err)
	}
	defer f.Close()
	return h.Play(ctx, f, t)
}

// Play replays events from r into t. Unknown ops and malformed lines are
// skipped; the target is flushed at the end.
func (h *Host) Play(ctx context.Context, r io.Reader, t Target) (Stats, error) {
	var stats Stats

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for sc.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var ev Event
		if err := json.Unmarshal([]byte(text), &ev); err != nil {
			stats.Skipped++
			h.logger.Warn("skipping malformed capture line",
				logger.Field{Key: "line", Value: line},
				logger.Field{Key: "error", Value: err.Error()})
			continue
		}
		if err := h.apply(ctx, ev, t, &stats); err != nil {
			return stats, err
		}
	}
	if err := sc.Err(); err != nil {
		return stats, fmt.Errorf("read capture: %w", err)
	}

	t.Flush()
	h.logger.Info("replay finished",
		logger.Field{Key: "events", Value: stats.Events},
		logger.Field{Key: "mutations", Value: stats.Mutations},
		logger.Field{Key: "responses", Value: stats.Responses},
		logger.Field{Key: "skipped", Value: stats.Skipped})
	return stats, nil
}

func (h *Host) apply(ctx context.Context, ev Event, t Target, stats *Stats) error {
	switch ev.Op {
	case OpNavigate:
		h.mu.Lock()
		h.path = ev.Path
		if h.path == "" {
			h.path = "/"
		}
		h.body.Reset()
		h.mu.Unlock()
		// пустой батч: роутер сверяет путь
		t.HandleMutations(nil)
	case OpDocument:
		h.mu.Lock()
		h.body.Reset()
		h.body.WriteString(ev.HTML)
		h.mu.Unlock()
	case OpAdded:
		nodes, err := dom.ParseFragment(ev.HTML)
		if err != nil {
			stats.Skipped++
			return nil
		}
		h.mu.Lock()
		h.body.WriteString(ev.HTML)
		h.mu.Unlock()
		t.HandleMutations(nodes)
		stats.Mutations++
	case OpResponse:
		typ := network.ResponseType(ev.Type)
		if typ == "" {
			typ = network.TypeFetch
		}
		status := ev.Status
		if status == 0 {
			status = 200
		}
		t.Observe(typ, ev.URL, status, ev.Body)
		stats.Responses++
	case OpWait:
		if err := h.sleep(ctx, time.Duration(ev.Ms)*time.Millisecond); err != nil {
			return err
		}
	case OpFlush:
		t.Flush()
	default:
		stats.Skipped++
		return nil
	}
	stats.Events++
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
